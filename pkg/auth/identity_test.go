package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"bazarchat/pkg/config"
)

func sign(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func setSigningKeys(t *testing.T, keys ...string) {
	t.Helper()
	rc := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range keys {
		rc.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(rc)
	t.Cleanup(func() { config.SetRuntime(nil) })
}

func TestRequireSignedViewerValidSignature(t *testing.T) {
	setSigningKeys(t, "secret")

	var viewer string
	h := RequireSignedViewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer = ViewerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Signature", sign("secret", "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if viewer != "u1" {
		t.Fatalf("viewer not injected into context, got %q", viewer)
	}
}

func TestRequireSignedViewerRejectsBadSignature(t *testing.T) {
	setSigningKeys(t, "secret")

	h := RequireSignedViewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Signature", sign("wrong", "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireSignedViewerBackendBypass(t *testing.T) {
	setSigningKeys(t, "secret")

	ran := false
	h := RequireSignedViewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("X-Role-Name", "backend")
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !ran || rec.Code != http.StatusOK {
		t.Fatalf("backend caller without signature must pass, code=%d", rec.Code)
	}
}

func TestResolveViewerHeaderMismatch(t *testing.T) {
	setSigningKeys(t, "secret")

	h := RequireSignedViewer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("X-User-ID", "someone-else")
		if _, code, _ := ResolveViewer(r); code != http.StatusForbidden {
			t.Fatalf("expected 403 on header mismatch, got %d", code)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Signature", sign("secret", "u1"))
	h.ServeHTTP(httptest.NewRecorder(), req)
}

func TestGatewayRolesAndRateLimit(t *testing.T) {
	sec := SecConfig{
		RPS:          1000,
		Burst:        1000,
		BackendKeys:  map[string]struct{}{"bk": {}},
		FrontendKeys: map[string]struct{}{"fk": {}},
		AdminKeys:    map[string]struct{}{"ak": {}},
	}
	var seenRole string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRole = r.Header.Get("X-Role-Name")
	})
	h := AuthenticateRequestMiddleware(sec)(inner)

	cases := []struct {
		key      string
		path     string
		wantCode int
		wantRole string
	}{
		{"bk", "/v1/chats", http.StatusOK, "backend"},
		{"ak", "/admin/whatever", http.StatusOK, "admin"},
		{"fk", "/v1/chats", http.StatusOK, "frontend"},
		{"fk", "/admin/whatever", http.StatusForbidden, ""},
		{"nope", "/v1/chats", http.StatusUnauthorized, ""},
		{"", "/v1/chats", http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		seenRole = ""
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.wantCode {
			t.Fatalf("key=%q path=%s: expected %d, got %d", tc.key, tc.path, tc.wantCode, rec.Code)
		}
		if tc.wantRole != "" && seenRole != tc.wantRole {
			t.Fatalf("key=%q: expected role %q, got %q", tc.key, tc.wantRole, seenRole)
		}
	}
}

func TestGatewayHealthzBypass(t *testing.T) {
	h := AuthenticateRequestMiddleware(SecConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz must bypass auth, got %d", rec.Code)
	}
}

func TestGatewayBearerToken(t *testing.T) {
	sec := SecConfig{RPS: 100, Burst: 100, BackendKeys: map[string]struct{}{"bk": {}}}
	h := AuthenticateRequestMiddleware(sec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer bk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer auth failed, got %d", rec.Code)
	}
}
