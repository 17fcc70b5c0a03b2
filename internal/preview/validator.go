// Package preview decides which files under the safe preview root may be
// served. It never touches the filesystem; callers open the resolved path.
package preview

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors returned by Resolve and Check.
var (
	ErrInvalidPath    = errors.New("invalid file path")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// DefaultAllowedExtensions is the set of file suffixes served when no
// override is configured.
var DefaultAllowedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".pdf", ".txt"}

// Validator checks caller-supplied relative paths against a fixed root.
// It is safe for concurrent use; nothing in it changes after NewValidator.
type Validator struct {
	root string
	exts []string
}

// NewValidator creates a Validator rooted at the absolute, cleaned form of
// root. A nil or empty exts uses DefaultAllowedExtensions.
func NewValidator(root string, exts []string) (*Validator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("preview root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve preview root %q: %w", root, err)
	}
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	normalized := make([]string, 0, len(exts))
	for _, ext := range exts {
		if e := NormalizeExtension(ext); e != "" {
			normalized = append(normalized, e)
		}
	}
	return &Validator{root: abs, exts: normalized}, nil
}

// Root returns the absolute safe root.
func (v *Validator) Root() string {
	return v.root
}

// Extensions returns a copy of the allowed extension list in configured order.
func (v *Validator) Extensions() []string {
	return append([]string(nil), v.exts...)
}

// IsValidPreviewPath reports whether candidate, joined to the root and
// lexically cleaned, stays inside the root. The root itself counts as inside;
// it has no extension, so AllowedExtension rejects it afterwards. Absolute
// candidates are never inside.
func (v *Validator) IsValidPreviewPath(candidate string) bool {
	if !v.contains(candidate) {
		return false
	}
	// The router has already decoded the query once. Anything still
	// percent-encoded was double encoded; decode exactly once more and
	// require that form to stay inside as well. A literal '%' that does not
	// decode is just part of the file name.
	if strings.Contains(candidate, "%") {
		if decoded, err := url.PathUnescape(candidate); err == nil && decoded != candidate {
			return v.contains(decoded)
		}
	}
	return true
}

func (v *Validator) contains(candidate string) bool {
	if strings.ContainsRune(candidate, 0) || filepath.IsAbs(candidate) {
		return false
	}
	return v.within(v.join(candidate))
}

// Resolve returns the absolute path candidate refers to, or ErrInvalidPath
// when it escapes the root.
func (v *Validator) Resolve(candidate string) (string, error) {
	if !v.IsValidPreviewPath(candidate) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, candidate)
	}
	return v.join(candidate), nil
}

// Check runs both stages in order: path containment, then the extension
// allowlist on the resolved path. The returned error wraps ErrInvalidPath or
// ErrTypeNotAllowed.
func (v *Validator) Check(candidate string) (string, error) {
	resolved, err := v.Resolve(candidate)
	if err != nil {
		return "", err
	}
	if !v.AllowedExtension(resolved) {
		return "", fmt.Errorf("%w: %q", ErrTypeNotAllowed, filepath.Ext(resolved))
	}
	return resolved, nil
}

// AllowedExtension reports whether p ends in one of the allowed suffixes,
// ignoring case.
func (v *Validator) AllowedExtension(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	if ext == "" {
		return false
	}
	for _, allowed := range v.exts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// NormalizeExtension lower-cases ext and ensures a leading dot. Blank input
// yields "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (v *Validator) join(candidate string) string {
	return filepath.Join(v.root, candidate)
}

func (v *Validator) within(resolved string) bool {
	if resolved == v.root {
		return true
	}
	prefix := v.root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(resolved, prefix)
}
