package protect

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	loginPath   = "/api/auth/login"
	camerasPath = "/proxy/protect/api/cameras"
	exportPath  = "/proxy/protect/api/video/export"

	csrfHeader      = "X-CSRF-Token"
	defaultAgent    = "protect-dl"
	sessionCookie   = "TOKEN"
	maxErrorBodyLen = 512
)

type Options struct {
	// Host is the console address, with optional port. The scheme is always https.
	Host string
	// InsecureSkipVerify disables server certificate validation. Protect
	// consoles ship with self-signed certificates.
	InsecureSkipVerify bool
	UserAgent          string
	Logger             *zap.SugaredLogger
}

// Client holds one HTTP session against a Protect console. Cookies set by
// Login are kept in the client's jar and replayed on every later request.
type Client struct {
	http    *resty.Client
	baseURL *url.URL
	log     *zap.SugaredLogger
}

func New(opts Options) (*Client, error) {
	host := strings.TrimSpace(opts.Host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimRight(host, "/")
	if host == "" {
		return nil, errors.New("protect: host is required")
	}

	base, err := url.Parse("https://" + host)
	if err != nil {
		return nil, fmt.Errorf("protect: invalid host %q: %w", opts.Host, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	agent := opts.UserAgent
	if agent == "" {
		agent = defaultAgent
	}

	r := resty.New()
	r.SetBaseURL(base.String())
	r.SetHeader("User-Agent", agent)
	r.SetHeader("Accept", "application/json")
	r.SetJSONMarshaler(json.Marshal)
	r.SetJSONUnmarshaler(json.Unmarshal)
	r.SetLogger(logger)
	if opts.InsecureSkipVerify {
		r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{
		http:    r,
		baseURL: base,
		log:     logger,
	}, nil
}

// BaseURL returns the console address requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// APIError is a non-success HTTP status returned by the console.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func newAPIError(op string, resp *resty.Response) *APIError {
	body := strings.TrimSpace(resp.String())
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}
	return &APIError{Op: op, StatusCode: resp.StatusCode(), Body: body}
}
