package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfagnish/preview-server/internal/preview"
)

// Config holds all server configuration loaded from environment variables.
// It is read once at startup and never modified afterwards.
type Config struct {
	ListenAddr        string        // HTTP listen address
	PreviewDir        string        // Safe root the preview files are served from
	PreviewRoute      string        // Route the preview handler is mounted at
	AllowedExtensions []string      // File suffixes that may be served
	AllowedOrigins    []string      // CORS origins allowed to embed previews
	MaxAgeSeconds     int           // CORS preflight cache duration
	ReadTimeout       time.Duration // http.Server read timeout
	MaxHeaderBytes    int           // http.Server request line + header cap
	ShutdownTimeout   time.Duration // Grace period for in-flight requests
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() *Config {
	return &Config{
		ListenAddr:        envOrDefault("LISTEN_ADDR", ":8000"),
		PreviewDir:        envOrDefault("PREVIEW_DIR", "./safe-preview-files"),
		PreviewRoute:      normalizeRoute(envOrDefault("PREVIEW_ROUTE", "/preview")),
		AllowedExtensions: envOrDefaultList("PREVIEW_EXTENSIONS", preview.DefaultAllowedExtensions),
		AllowedOrigins:    envOrDefaultList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxAgeSeconds:     envOrDefaultInt("CORS_MAX_AGE", 300),
		ReadTimeout:       envOrDefaultDuration("READ_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:    envOrDefaultPositiveInt("MAX_HEADER_BYTES", 16<<10),
		ShutdownTimeout:   envOrDefaultDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func normalizeRoute(route string) string {
	route = "/" + strings.Trim(route, "/")
	return route
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrDefaultPositiveInt(key string, fallback int) int {
	if n := envOrDefaultInt(key, fallback); n > 0 {
		return n
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// envOrDefaultList splits a comma-separated variable, dropping blanks.
func envOrDefaultList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
