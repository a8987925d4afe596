package qualys

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for Qualys API failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrAuth indicates login failed, the session cookie was missing,
	// or the API rejected the session token.
	ErrAuth = errors.New("qualys: authentication failed")

	// ErrReportNotFound indicates no report in the listing has the target title.
	ErrReportNotFound = errors.New("qualys: report not found")

	// ErrParse indicates a response body did not have the expected shape.
	ErrParse = errors.New("qualys: unexpected response format")

	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = errors.New("qualys: request failed")

	// ErrAPI indicates the API answered with an error status or an in-band error.
	ErrAPI = errors.New("qualys: api error")
)

// APIError describes a failed API call. Err holds the sentinel for the
// failure kind so errors.Is works through it.
type APIError struct {
	// Action is the form action that failed (login, logout, list, fetch)
	Action string

	// StatusCode is the HTTP status, 0 when no response arrived
	StatusCode int

	// Code and Text come from a SIMPLE_RETURN body when one was present
	Code string
	Text string

	Err error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("qualys %s: HTTP %d", e.Action, e.StatusCode)
	if e.Code != "" {
		msg += " code " + e.Code
	}
	if e.Text != "" {
		msg += ": " + e.Text
	}
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// newAPIError builds an APIError from a response, pulling the vendor
// code and message out of a SIMPLE_RETURN body if there is one.
func newAPIError(action string, status int, body []byte, kind error) *APIError {
	e := &APIError{Action: action, StatusCode: status, Err: kind}
	if ret, ok := ParseSimpleReturn(string(body)); ok {
		e.Code = ret.Code
		e.Text = ret.Text
	}
	if e.Text == "" && status != 0 {
		e.Text = http.StatusText(status)
	}
	if kind == ErrAPI && status == http.StatusUnauthorized {
		e.Err = ErrAuth
	}
	return e
}
