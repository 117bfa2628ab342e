package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"branch-supply/internal/app"
	"branch-supply/internal/core"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
	SecureCookie   bool
	RequestTimeout time.Duration
	BodyLimitBytes int64
	ServiceName    string
	Version        string
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	opts   Options
	log    zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options, log zerolog.Logger) http.Handler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.BodyLimitBytes <= 0 {
		opts.BodyLimitBytes = 1 << 20
	}
	h := &Handler{
		svc:  svc,
		opts: opts,
		log:  log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))
	r.Use(Timeout(opts.RequestTimeout))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schema/{name}", h.schema)
	r.With(RequestBodyLimit(opts.BodyLimitBytes)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		// Evidence upload: body limit is managed inside the handler (multipart).
		r.Post("/api/purchase-orders/{id}/evidence", h.uploadEvidence)
		r.Get("/api/purchase-orders/{id}/evidence/{fileName}", h.downloadEvidence)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(opts.BodyLimitBytes))

			r.Get("/api/auth/me", h.me)
			r.Get("/api/branches", h.branches)

			r.Post("/api/purchase-orders", h.createOrder)
			r.Get("/api/purchase-orders", h.listOrders)
			r.Get("/api/purchase-orders/mine", h.listMyOrders)
			r.Get("/api/purchase-orders/pending-count", h.pendingCount)
			r.Get("/api/purchase-orders/{id}", h.getOrder)
			r.Get("/api/purchase-orders/{id}/history", h.orderHistory)
			r.Post("/api/purchase-orders/{id}/ship", h.shipOrder)
			r.Post("/api/purchase-orders/{id}/confirm", h.confirmOrder)
			r.Post("/api/purchase-orders/{id}/receive", h.receiveOrder)
			r.Post("/api/purchase-orders/{id}/cancel", h.cancelOrder)
			r.Post("/api/purchase-orders/{id}/receive-note/suggest", h.suggestReceiveNote)

			r.Get("/api/purchase-orders/{id}/evidence", h.listEvidence)
			r.Delete("/api/purchase-orders/{id}/evidence/{fileName}", h.deleteEvidence)
		})
	})

	h.router = r
	return r
}

// health reports liveness.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status  string `json:"status"`
		Service string `json:"service,omitempty"`
		Version string `json:"version,omitempty"`
	}
	writeJSON(w, response{Status: "ok", Service: h.opts.ServiceName, Version: h.opts.Version})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors. An empty
// body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// orderID parses the {id} URL parameter.
func orderID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Message: "invalid purchase order id"}
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, &core.ValidationError{Field: name, Message: "must be an integer"}
	}
	return &n, nil
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}
