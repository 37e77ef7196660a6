package logger

import "net/http"

// redacted headers never reach the log output
var sensitiveHeaders = map[string]struct{}{
	"Authorization":    {},
	"X-Api-Key":        {},
	"X-User-Signature": {},
	"Cookie":           {},
}

// LogRequest emits a debug record for an incoming HTTP request with
// sensitive headers redacted.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	hdrs := map[string]string{}
	for k, v := range r.Header {
		if _, hidden := sensitiveHeaders[http.CanonicalHeaderKey(k)]; hidden {
			hdrs[k] = "[redacted]"
			continue
		}
		if len(v) > 0 {
			hdrs[k] = v[0]
		}
	}
	Debug("http_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", hdrs)
}
