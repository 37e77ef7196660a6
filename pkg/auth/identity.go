package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"bazarchat/pkg/config"
	"bazarchat/pkg/logger"
	"bazarchat/pkg/utils"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting. Shared by gateway.go and
// limiter.go.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

type ctxViewerKey struct{}

// RequireSignedViewer verifies HMAC signature headers and injects the
// verified viewer id into the request context. Backend and admin callers
// may omit the signature and supply X-User-ID directly.
func RequireSignedViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if role == "backend" || role == "admin" {
			if sig == "" {
				next.ServeHTTP(w, r)
				return
			}
			// signature present -> verify it like any other caller
		}

		if sig == "" || userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
			return
		}

		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		ctx := context.WithValue(r.Context(), ctxViewerKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ViewerFromContext returns the signature-verified viewer id or "".
func ViewerFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxViewerKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func validateViewer(id string) (bool, string) {
	if id == "" {
		return false, "viewer required"
	}
	if len(id) > 128 {
		return false, "viewer id too long"
	}
	return true, ""
}

// ResolveViewer is the single canonical resolver handlers call. A
// signature-verified viewer in context is authoritative; a conflicting
// X-User-ID header yields 403. Without a signature, backend/admin roles
// may supply the viewer via the X-User-ID header; frontend callers get
// a 401.
func ResolveViewer(r *http.Request) (string, int, string) {
	if id := ViewerFromContext(r.Context()); id != "" {
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" && h != id {
			logger.Warn("viewer_mismatch_signature_header", "signature", id, "header", h, "path", r.URL.Path)
			return "", http.StatusForbidden, "viewer mismatch between signature and header"
		}
		return id, 0, ""
	}
	role := r.Header.Get("X-Role-Name")
	if role == "backend" || role == "admin" {
		if h := strings.TrimSpace(r.Header.Get("X-User-ID")); h != "" {
			if ok, msg := validateViewer(h); !ok {
				return "", http.StatusBadRequest, msg
			}
			return h, 0, ""
		}
		logger.Warn("backend_missing_viewer", "path", r.URL.Path)
		return "", http.StatusBadRequest, "viewer required for backend requests"
	}
	logger.Warn("missing_viewer_signature", "role", role, "path", r.URL.Path)
	return "", http.StatusUnauthorized, "missing or invalid viewer signature"
}
