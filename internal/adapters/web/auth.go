package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"branch-supply/internal/app"
	"branch-supply/internal/core"
)

const authCookie = "auth_token"

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's id extracted from the JWT. Role
// and branches are never read from the token.
type AuthClaims struct {
	UserID int
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// tokenFromRequest reads the auth_token cookie, falling back to a Bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (h *Handler) parseToken(raw string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.opts.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func (h *Handler) issueToken(userID int, now time.Time) (string, error) {
	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.opts.JWTSecret))
}

// RequireAuth is chi middleware that validates the token and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		claims, err := h.parseToken(raw)
		if err != nil {
			writeError(w, r, err.Error(), "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, &AuthClaims{UserID: claims.UserID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller builds the app.Caller of an authenticated request. The X-Branch-ID
// header selects the active branch and is re-validated by the service.
func caller(r *http.Request) (app.Caller, error) {
	claims := authFromContext(r.Context())
	if claims == nil {
		return app.Caller{}, fmt.Errorf("no authenticated user: %w", core.ErrUnauthorized)
	}
	c := app.Caller{UserID: claims.UserID}
	if v := strings.TrimSpace(r.Header.Get("X-Branch-ID")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return app.Caller{}, &core.ValidationError{Field: "X-Branch-ID", Message: "must be a branch id"}
		}
		c.BranchHint = &id
	}
	return c, nil
}

type userJSON struct {
	ID               int    `json:"id"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	AssignedBranches []int  `json:"assignedBranches"`
	PrimaryBranch    int    `json:"primaryBranch,omitempty"`
	ActiveBranch     int    `json:"activeBranch"`
}

type branchJSON struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsCentral bool   `json:"isCentral"`
}

type sessionJSON struct {
	Token    string       `json:"token,omitempty"`
	User     userJSON     `json:"user"`
	Branches []branchJSON `json:"branches"`
}

func toSessionJSON(s *app.SessionResult) sessionJSON {
	out := sessionJSON{
		User: userJSON{
			ID:               s.Identity.UserID,
			Username:         s.Identity.Username,
			Role:             string(s.Identity.Role),
			AssignedBranches: s.Identity.AssignedBranches,
			PrimaryBranch:    s.Identity.PrimaryBranch,
			ActiveBranch:     s.ActiveBranch,
		},
		Branches: toBranchesJSON(s.Branches),
	}
	if out.User.AssignedBranches == nil {
		out.User.AssignedBranches = []int{}
	}
	return out
}

func toBranchesJSON(in []core.Branch) []branchJSON {
	out := make([]branchJSON, 0, len(in))
	for _, b := range in {
		out = append(out, branchJSON{ID: b.ID, Name: b.Name, IsCentral: b.IsCentral})
	}
	return out
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		h.fail(w, r, err)
		return
	}

	signed, err := h.issueToken(session.Identity.UserID, time.Now())
	if err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.opts.TokenTTL.Seconds()),
	})
	resp := toSessionJSON(session)
	resp.Token = signed
	writeJSON(w, resp)
}

// logout handles POST /api/auth/logout: clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.svc.Me(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toSessionJSON(session))
}

// branches handles GET /api/branches.
func (h *Handler) branches(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.ListBranches(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toBranchesJSON(res.Branches))
}
