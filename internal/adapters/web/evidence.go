package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"branch-supply/internal/core"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type failureJSON struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// uploadEvidence handles POST /api/purchase-orders/{id}/evidence.
// Files are sent as multipart form field "files" (the singular "file" is also read).
// 201 when every file was stored, 207 when some were, 400 when none were.
func (h *Handler) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}

	// Room for every file at the limit plus multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, core.MaxEvidenceBytes*(core.MaxEvidenceFiles+1))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		h.fail(w, r, &core.ValidationError{Field: "files", Message: "malformed multipart body: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := slices.Concat(r.MultipartForm.File["files"], r.MultipartForm.File["file"])
	if len(headers) == 0 {
		h.fail(w, r, &core.ValidationError{Field: "files", Message: "no file provided"})
		return
	}
	if len(headers) > core.MaxEvidenceFiles {
		h.fail(w, r, &core.ValidationError{Field: "files", Message: fmt.Sprintf("too many files (max %d)", core.MaxEvidenceFiles)})
		return
	}

	files := make([]core.EvidenceFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, r, "failed to open uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		// One byte past the limit is enough for the service to reject the file.
		data, err := io.ReadAll(io.LimitReader(f, core.MaxEvidenceBytes+1))
		f.Close()
		if err != nil {
			writeError(w, r, "failed to read uploaded file", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		files = append(files, core.EvidenceFile{FileName: fh.Filename, Data: data})
	}

	res, err := h.svc.UploadEvidence(r.Context(), c, id, files)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	failed := make([]failureJSON, 0, len(res.Failed))
	for _, f := range res.Failed {
		failed = append(failed, failureJSON{FileName: f.FileName, Reason: f.Reason})
	}
	status := http.StatusCreated
	switch {
	case len(res.Stored) == 0:
		status = http.StatusBadRequest
	case len(res.Failed) > 0:
		status = http.StatusMultiStatus
	}
	writeJSONStatus(w, status, struct {
		Stored   []evidenceJSON `json:"stored"`
		Failed   []failureJSON  `json:"failed"`
		Evidence []evidenceJSON `json:"evidence"`
	}{toEvidenceJSON(res.Stored), failed, toEvidenceJSON(res.Evidence)})
}

// listEvidence handles GET /api/purchase-orders/{id}/evidence.
func (h *Handler) listEvidence(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListEvidence(r.Context(), c, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, toEvidenceJSON(list))
}

// downloadEvidence handles GET /api/purchase-orders/{id}/evidence/{fileName}.
func (h *Handler) downloadEvidence(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	ev, body, err := h.svc.OpenEvidence(r.Context(), c, id, evidenceName(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", ev.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ev.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(ev.SizeBytes, 10))
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn().Err(err).Int("order_id", id).Str("file_name", ev.FileName).Msg("evidence download interrupted")
	}
}

// deleteEvidence handles DELETE /api/purchase-orders/{id}/evidence/{fileName}. Admin only.
func (h *Handler) deleteEvidence(w http.ResponseWriter, r *http.Request) {
	c, id, ok := h.callerAndID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteEvidence(r.Context(), c, id, evidenceName(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// evidenceName returns the unescaped {fileName} URL parameter. chi matches on
// the raw path when one is set, so the value may still be percent-encoded.
func evidenceName(r *http.Request) string {
	raw := chi.URLParam(r, "fileName")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
