package qualys

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/waftester/vulntracker/pkg/defaults"
	"github.com/waftester/vulntracker/pkg/iohelper"
)

// StartSession logs in and returns the session token from the response cookie.
//
// A non-200 answer returns an *APIError wrapping ErrAuth. The token is still
// returned if the response carried one, so the caller can log out.
func (c *Client) StartSession(ctx context.Context) (SessionToken, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	resp, err := c.post(ctx, defaults.SessionPath, "login", form, "")
	if err != nil {
		return "", err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body := iohelper.ReadBodyOrLog(resp.Body, c.logger)
	value, found := ExtractSessionToken(resp.Header.Values("Set-Cookie"))
	token := SessionToken(value)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("authentication failed", slog.Int("status", resp.StatusCode))
		return token, newAPIError("login", resp.StatusCode, body, ErrAuth)
	}
	if !found {
		c.logger.Warn("login response carried no session cookie")
		e := newAPIError("login", resp.StatusCode, body, ErrAuth)
		e.Text = "no " + defaults.SessionCookie + " cookie in response"
		return "", e
	}

	c.logger.Info("authenticated",
		slog.Int("status", resp.StatusCode),
		slog.Int("token_len", len(value)),
	)
	return token, nil
}

// KillSession logs out. Callers treat failures as best effort.
func (c *Client) KillSession(ctx context.Context, token SessionToken) error {
	resp, err := c.post(ctx, defaults.SessionPath, "logout", nil, token)
	if err != nil {
		return err
	}
	defer iohelper.DrainAndClose(resp.Body)

	body := iohelper.ReadBodyOrLog(resp.Body, c.logger)
	if resp.StatusCode != http.StatusOK {
		return newAPIError("logout", resp.StatusCode, body, ErrAPI)
	}

	c.logger.Info("logged out")
	return nil
}
