package httpclient

import (
	"net/http"
)

// middlewareTransport wraps a base RoundTripper to stamp default headers
// (User-Agent, X-Requested-With) on requests that do not set them. It has
// no retry loop.
type middlewareTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   http.Header
}

// RoundTrip implements http.RoundTripper with middleware.
func (m *middlewareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the caller's request.
	r := req.Clone(req.Context())

	if m.userAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", m.userAgent)
	}

	for key, vals := range m.headers {
		if r.Header.Get(key) != "" {
			continue
		}
		for _, v := range vals {
			r.Header.Add(key, v)
		}
	}

	return m.base.RoundTrip(r)
}

// needsMiddleware reports whether the config requires the middleware transport.
func needsMiddleware(cfg Config) bool {
	return cfg.UserAgent != "" || len(cfg.Headers) > 0
}
