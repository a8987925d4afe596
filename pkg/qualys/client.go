// Package qualys is a client for the Qualys VM v2.0 "fo" API: session
// login/logout and saved report listing/download.
//
// Every call is a form-encoded POST authenticated with the QualysSession
// cookie. Calls are never retried.
package qualys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/iohelper"
)

// SessionToken is the value of the QualysSession cookie.
type SessionToken string

// String keeps tokens out of logs and error messages.
func (t SessionToken) String() string {
	if t == "" {
		return "<none>"
	}
	return "<redacted>"
}

// Cookie renders the Cookie header value for the token.
func (t SessionToken) Cookie() string {
	return defaults.SessionCookie + "=" + string(t)
}

// Observer receives one callback per API call. statusCode is 0 when the
// request failed before a response arrived.
type Observer interface {
	ObserveAPICall(action string, statusCode int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the platform API gateway (default: defaults.QualysBaseURL)
	BaseURL string

	Username string
	Password string

	// HTTPClient performs the requests (default: http.DefaultClient)
	HTTPClient *http.Client

	// RequestsPerMinute paces API calls; 0 disables pacing.
	RequestsPerMinute int

	// MaxReportSize caps a CSV download (default: iohelper.LargeMaxBodySize)
	MaxReportSize int64

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger

	// Observer is notified of every call (optional)
	Observer Observer
}

// Client talks to one Qualys platform with one set of credentials.
type Client struct {
	baseURL       *url.URL
	username      string
	password      string
	http          *http.Client
	limiter       *rate.Limiter
	maxReportSize int64
	logger        *slog.Logger
	observer      Observer
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.QualysBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("qualys: invalid base URL %q", opts.BaseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.MaxReportSize <= 0 {
		opts.MaxReportSize = iohelper.LargeMaxBodySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Client{
		baseURL:       base,
		username:      opts.Username,
		password:      opts.Password,
		http:          opts.HTTPClient,
		limiter:       limiter,
		maxReportSize: opts.MaxReportSize,
		logger:        opts.Logger.With(slog.String("component", "qualys")),
		observer:      opts.Observer,
	}, nil
}

// post sends one form-encoded action to path. The caller owns the response body.
func (c *Client) post(ctx context.Context, path, action string, form url.Values, token SessionToken) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, action, err)
	}

	if form == nil {
		form = url.Values{}
	}
	form.Set("action", action)

	endpoint := c.baseURL.JoinPath(path).String()
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, action, err)
	}
	req.Header.Set("Content-Type", defaults.ContentTypeForm)
	req.Header.Set("X-Requested-With", defaults.ToolName)
	if token != "" {
		req.Header.Set("Cookie", token.Cookie())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.observer != nil {
		c.observer.ObserveAPICall(action, status, elapsed)
	}
	c.logger.Debug("api call",
		slog.String("action", action),
		slog.Int("status", status),
		slog.Duration("elapsed", elapsed),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, action, err)
	}
	return resp, nil
}

// isTimeout reports whether err came from a deadline or client timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
