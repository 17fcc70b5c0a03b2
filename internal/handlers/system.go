package handlers

import (
	"net/http"
	"os"

	"github.com/alfagnish/preview-server/internal/preview"
	"github.com/go-chi/chi/v5"
)

// SystemHandler provides the health endpoint used by load balancers and
// the process that populates the preview directory.
type SystemHandler struct {
	validator *preview.Validator
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(v *preview.Validator) *SystemHandler {
	return &SystemHandler{validator: v}
}

// Routes registers all system routes on the given chi router.
func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
}

// dirStatus reports the state of the safe preview root.
type dirStatus struct {
	Status     string   `json:"status"`
	Extensions []string `json:"extensions"`
	Error      string   `json:"error,omitempty"`
}

// Health stats the preview root and reports "degraded" when it is missing
// or not a directory. The root's contents are never listed.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	dir := h.previewDirStatus()

	overall := "ok"
	if dir.Error != "" {
		overall = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      overall,
		"preview_dir": dir,
	})
}

func (h *SystemHandler) previewDirStatus() dirStatus {
	st := dirStatus{Status: "ok", Extensions: h.validator.Extensions()}

	info, err := os.Stat(h.validator.Root())
	switch {
	case err != nil:
		st.Status = "error"
		st.Error = "preview directory unavailable"
	case !info.IsDir():
		st.Status = "error"
		st.Error = "preview root is not a directory"
	}
	return st
}
