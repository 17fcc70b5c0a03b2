package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfagnish/preview-server/internal/preview"
	"github.com/go-chi/chi/v5"
)

func newPreviewRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "safe-preview-files")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}
	v, err := preview.NewValidator(root, nil)
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	r := chi.NewRouter()
	r.Route("/preview", NewPreviewHandler(v).Routes)
	return r, root
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func previewURL(file string) string {
	return "/preview?file=" + url.QueryEscape(file)
}

func TestServePreviewValidFile(t *testing.T) {
	h, root := newPreviewRouter(t)
	png := []byte("\x89PNG\r\n\x1a\nfake image bytes")
	writeFile(t, root, "test.png", png)

	rec := get(t, h, previewURL("test.png"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), png) {
		t.Fatalf("body does not match file on disk")
	}
}

func TestServePreviewContentTypeByExtension(t *testing.T) {
	h, root := newPreviewRouter(t)
	writeFile(t, root, "docs/report.PDF", []byte("%PDF-1.4 test"))
	writeFile(t, root, "notes.txt", []byte("hello"))

	tests := map[string]string{
		"docs/report.PDF": "application/pdf",
		"notes.txt":       "text/plain",
	}
	for file, want := range tests {
		rec := get(t, h, previewURL(file))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", file, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, want) {
			t.Fatalf("%s: expected content type %q, got %q", file, want, ct)
		}
	}
}

func TestServePreviewMissingParameter(t *testing.T) {
	h, _ := newPreviewRouter(t)
	for _, target := range []string{
		"/preview",
		"/preview?file=",
		"/preview?file=a.png&file=b.png",
	} {
		rec := get(t, h, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Missing or invalid") {
			t.Fatalf("%s: unexpected body %q", target, rec.Body.String())
		}
	}
}

func TestServePreviewRejectsTraversal(t *testing.T) {
	h, root := newPreviewRouter(t)
	// A real file just outside the root, to prove it is never reachable.
	if err := os.WriteFile(filepath.Join(filepath.Dir(root), ".env"), []byte("SECRET=1"), 0o600); err != nil {
		t.Fatalf("write outside file: %v", err)
	}

	payloads := []string{
		"../../../../etc/passwd",
		"../../../.env",
		"../.env",
		"test.png/../../../.env",
		"nonexistent/../../package.json",
		"valid.png%2f..%2f..%2f..%2f..%2f..%2fetc%2fpasswd",
		"../safe-preview-files-evil/x.png",
		"/etc/passwd",
		"/etc/x.png",
	}
	for _, payload := range payloads {
		rec := get(t, h, previewURL(payload))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", payload, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid file path") {
			t.Fatalf("%q: unexpected body %q", payload, rec.Body.String())
		}
	}

	// Percent-encoded once on the wire; the query parser decodes it.
	rec := get(t, h, "/preview?file=..%2F..%2F..%2Fetc%2Fpasswd")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid file path") {
		t.Fatalf("encoded traversal: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServePreviewLiteralPercentInName(t *testing.T) {
	h, root := newPreviewRouter(t)
	data := []byte("percent named file")
	writeFile(t, root, "100%.png", data)

	rec := get(t, h, "/preview?file=100%25.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Fatalf("body does not match file on disk")
	}
}

func TestServePreviewAbsolutePathNeverServed(t *testing.T) {
	h, root := newPreviewRouter(t)
	// Would be served if the absolute path were re-rooted under the root.
	writeFile(t, root, "etc/x.png", []byte("inside"))

	rec := get(t, h, previewURL("/etc/x.png"))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Invalid file path") {
		t.Fatalf("expected 400 invalid path, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServePreviewLongNestedEncoding(t *testing.T) {
	h, _ := newPreviewRouter(t)
	payload := "%" + strings.Repeat("25", 20000) + "41.png"

	start := time.Now()
	rec := get(t, h, previewURL(payload))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("request took %s", elapsed)
	}
	// One level is decoded and stays under the root, so validation passes
	// and the lookup reaches the filesystem.
	if rec.Code == http.StatusBadRequest {
		t.Fatalf("expected validation to pass, got 400 %q", rec.Body.String())
	}
}

func TestServePreviewDisallowedExtension(t *testing.T) {
	h, root := newPreviewRouter(t)
	writeFile(t, root, "malicious.js", []byte("alert(1)"))

	for _, file := range []string{"malicious.js", "page.html", "noext", "."} {
		rec := get(t, h, previewURL(file))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", file, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "File type not allowed") {
			t.Fatalf("%q: unexpected body %q", file, rec.Body.String())
		}
	}
}

func TestServePreviewNotFound(t *testing.T) {
	h, root := newPreviewRouter(t)
	if err := os.MkdirAll(filepath.Join(root, "folder.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, file := range []string{"missing.pdf", "sub/missing.gif", "folder.png"} {
		rec := get(t, h, previewURL(file))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%q: expected 404, got %d", file, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "File not found") {
			t.Fatalf("%q: unexpected body %q", file, rec.Body.String())
		}
	}
}

func TestServePreviewErrorBodiesArePlainText(t *testing.T) {
	h, _ := newPreviewRouter(t)
	rec := get(t, h, previewURL("missing.pdf"))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain error body, got %q", ct)
	}
}

func TestServePreviewInternalErrorIsGeneric(t *testing.T) {
	h, root := newPreviewRouter(t)
	writeFile(t, root, "notes.txt", []byte("plain file"))

	// A regular file used as a directory fails with ENOTDIR, not ENOENT.
	rec := get(t, h, previewURL("notes.txt/inner.png"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Internal server error") {
		t.Fatalf("unexpected body %q", body)
	}
	if strings.Contains(body, root) {
		t.Fatalf("error body leaks the filesystem path: %q", body)
	}
}
