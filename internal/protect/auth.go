package protect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrLoginFailed = errors.New("login failed")

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session. On success the session cookie is
// retained for every later call on this client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginPayload{Username: username, Password: password}).
		Post(loginPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %w", ErrLoginFailed, newAPIError("login", resp))
	}

	if token := resp.Header().Get(csrfHeader); token != "" {
		c.http.SetHeader(csrfHeader, token)
	}

	c.log.Debugw("login accepted", "host", c.baseURL.Host, "user", username)
	return nil
}

// SessionExpiry reports when the session token expires, if the console
// issued a JWT session cookie carrying an exp claim. The token signature is
// not verified; the value is only used for diagnostics.
func (c *Client) SessionExpiry() (time.Time, bool) {
	jar := c.http.GetClient().Jar
	if jar == nil {
		return time.Time{}, false
	}
	for _, ck := range jar.Cookies(c.baseURL) {
		if ck.Name != sessionCookie {
			continue
		}
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(ck.Value, claims); err != nil {
			return time.Time{}, false
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return time.Time{}, false
		}
		return exp.Time, true
	}
	return time.Time{}, false
}
