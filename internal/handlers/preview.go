package handlers

import (
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"

	"github.com/alfagnish/preview-server/internal/preview"
	"github.com/go-chi/chi/v5"
)

// Response bodies for every non-200 outcome of ServePreview.
const (
	msgMissingParam   = `Missing or invalid "file" parameter`
	msgInvalidPath    = "Invalid file path"
	msgTypeNotAllowed = "File type not allowed"
	msgNotFound       = "File not found"
	msgInternal       = "Internal server error"
)

// PreviewHandler serves preview artifacts (images, PDFs, text) that an
// external process drops into the safe preview directory.
type PreviewHandler struct {
	validator *preview.Validator
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(v *preview.Validator) *PreviewHandler {
	return &PreviewHandler{validator: v}
}

// Routes registers the preview route. HEAD shares the handler;
// http.ServeContent omits the body for it.
func (h *PreviewHandler) Routes(r chi.Router) {
	r.Get("/", h.ServePreview)
	r.Head("/", h.ServePreview)
}

// ServePreview streams the file named by the `file` query parameter. The
// parameter must be a single relative path that stays under the safe root
// and ends in an allowed extension.
func (h *PreviewHandler) ServePreview(w http.ResponseWriter, r *http.Request) {
	values, ok := r.URL.Query()["file"]
	if !ok || len(values) != 1 || values[0] == "" {
		http.Error(w, msgMissingParam, http.StatusBadRequest)
		return
	}

	resolved, err := h.validator.Check(values[0])
	switch {
	case errors.Is(err, preview.ErrInvalidPath):
		http.Error(w, msgInvalidPath, http.StatusBadRequest)
		return
	case errors.Is(err, preview.ErrTypeNotAllowed):
		http.Error(w, msgTypeNotAllowed, http.StatusBadRequest)
		return
	case err != nil:
		log.Printf("preview: check %q: %v", values[0], err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	if err := sendFile(w, r, resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, msgNotFound, http.StatusNotFound)
			return
		}
		log.Printf("preview: send %s: %v", resolved, err)
		http.Error(w, msgInternal, http.StatusInternalServerError)
	}
}

// sendFile writes the file at p as the response. It returns an error only
// when nothing has been written yet, so the caller can still pick a status.
func sendFile(w http.ResponseWriter, r *http.Request, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	// A directory named like an allowed file is not a servable file.
	if info.IsDir() {
		return &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}
