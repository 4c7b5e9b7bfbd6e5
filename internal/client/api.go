package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chetan-code/supatodo/internal/models"
	"golang.org/x/oauth2"
)

const maxResponseSize int64 = 16 << 20

// Backend is what the todo store needs from the server.
type Backend interface {
	List(ctx context.Context) ([]models.Todo, error)
	Create(ctx context.Context, in models.NewTodo) (*models.Todo, error)
	Update(ctx context.Context, id string, in models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// APIError is a non-2xx answer from the todo API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// APIClient calls the todo API. Requests go through an oauth2 transport,
// so each one carries a current bearer token from the token source.
type APIClient struct {
	baseURL string
	http    *http.Client
}

var _ Backend = (*APIClient)(nil)

// NewAPIClient returns a client for the API at baseURL. base is the
// underlying transport; nil means http.DefaultTransport.
func NewAPIClient(baseURL string, tokens oauth2.TokenSource, base http.RoundTripper) (*APIClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("client: api url %q: %w", baseURL, err)
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &oauth2.Transport{Source: tokens, Base: base},
		},
	}, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("client: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	return nil
}

func (c *APIClient) List(ctx context.Context) ([]models.Todo, error) {
	var todos []models.Todo
	if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *APIClient) Create(ctx context.Context, in models.NewTodo) (*models.Todo, error) {
	var todo models.Todo
	if err := c.do(ctx, http.MethodPost, "/api/todos", in, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (c *APIClient) Update(ctx context.Context, id string, in models.TodoUpdate) (*models.Todo, error) {
	var todo models.Todo
	if err := c.do(ctx, http.MethodPut, "/api/todos/"+url.PathEscape(id), in, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/todos/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) DeleteAll(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/todos", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}
