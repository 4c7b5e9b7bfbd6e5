// Package supabase wires the two provider services this project depends
// on: GoTrue (/auth/v1) for accounts and sessions, through gotrue-go, and
// PostgREST (/rest/v1) for the todos table, through postgrest-go.
//
// Neither library takes a context, so every call gets an http.Client
// whose transport binds the caller's context to the request. Errors from
// both libraries are turned into *Error, which keeps the provider's
// status and message.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	baseURL *url.URL
	key     string
	http    *http.Client
	now     func() time.Time
}

// New returns a client for the project at rawURL using key (anon or
// service role). A nil httpClient uses a client with a 30s timeout.
func New(rawURL, key string, httpClient *http.Client) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("supabase: url is required")
	}
	if key == "" {
		return nil, fmt.Errorf("supabase: key is required")
	}
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: parsing url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("supabase: url %q must be absolute", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: u, key: key, http: httpClient, now: time.Now}, nil
}

// endpoint is the project url joined with path.
func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// contextTransport sends every request with ctx attached.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// roundTripper returns the configured transport bound to ctx.
func (c *Client) roundTripper(ctx context.Context) http.RoundTripper {
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return contextTransport{ctx: ctx, base: base}
}

// httpClient is c's http client with its transport bound to ctx.
func (c *Client) httpClient(ctx context.Context) http.Client {
	return http.Client{
		Transport: c.roundTripper(ctx),
		Timeout:   c.http.Timeout,
	}
}

// Error is a failed call to the provider. StatusCode is 0 when the
// library did not report it (PostgREST errors carry only code and message).
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0 && e.Code != "":
		return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
	case e.StatusCode == 0:
		return e.Message
	case e.Code != "":
		return fmt.Sprintf("%s (status %d, code %s)", e.Message, e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
}

// errorBody covers the shapes GoTrue and PostgREST use for errors.
type errorBody struct {
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	ErrorDescription string          `json:"error_description"`
	Error            string          `json:"error"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
}

func parseError(status int, body []byte) *Error {
	e := &Error{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}
	for _, m := range []string{eb.Message, eb.Msg, eb.ErrorDescription, eb.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Code = eb.ErrorCode
	if e.Code == "" && len(eb.Code) > 0 {
		var s string
		if json.Unmarshal(eb.Code, &s) == nil {
			e.Code = s
		}
	}
	return e
}

// authError converts gotrue-go's "response status code N: body" errors
// into *Error. Anything else (transport failures) is returned as is.
func authError(err error) error {
	if err == nil {
		return nil
	}
	rest, ok := strings.CutPrefix(err.Error(), "response status code ")
	if !ok {
		return err
	}
	code, body, _ := strings.Cut(rest, ": ")
	status, convErr := strconv.Atoi(code)
	if convErr != nil {
		return err
	}
	return parseError(status, []byte(body))
}

// QueryError converts postgrest-go's "(code) message" errors into *Error.
// Anything else is returned as is.
func QueryError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "(") {
		return err
	}
	code, message, ok := strings.Cut(msg[1:], ") ")
	if !ok {
		return err
	}
	return &Error{Code: code, Message: message}
}
