package supabase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/supabase-community/postgrest-go"
)

func TestRestSendsKeyAndCallerToken(t *testing.T) {
	var gotAuth, gotKey, gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/todos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "1", "task": "a"}})
	})

	var rows []struct {
		ID   string `json:"id"`
		Task string `json:"task"`
	}
	_, err := c.Rest(context.Background(), "user-token").From("todos").
		Select("*", "", false).
		Eq("user_id", userA).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		t.Fatalf("ExecuteTo: %v", err)
	}
	if len(rows) != 1 || rows[0].Task != "a" {
		t.Errorf("rows = %+v", rows)
	}
	if gotAuth != "Bearer user-token" || gotKey != testKey {
		t.Errorf("Authorization = %q apikey = %q", gotAuth, gotKey)
	}
	if gotQuery == "" {
		t.Error("no query parameters sent")
	}
}

func TestRestFallsBackToProjectKey(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []any{})
	})

	var rows []map[string]any
	if _, err := c.Rest(context.Background(), "").From("todos").Select("*", "", false).ExecuteTo(&rows); err != nil {
		t.Fatalf("ExecuteTo: %v", err)
	}
	if gotAuth != "Bearer "+testKey {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestRestHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent after cancel")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var rows []map[string]any
	_, err := c.Rest(ctx, "").From("todos").Select("*", "", false).ExecuteTo(&rows)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestQueryErrorKeepsCodeAndMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "22P02",
			"message": `invalid input syntax for type uuid: "nope"`,
		})
	})

	var rows []map[string]any
	_, err := c.Rest(context.Background(), "").From("todos").Select("*", "", false).Eq("id", "nope").ExecuteTo(&rows)
	var perr *Error
	if !errors.As(QueryError(err), &perr) {
		t.Fatalf("QueryError(%v) is not *Error", err)
	}
	if perr.Code != "22P02" || perr.Message != `invalid input syntax for type uuid: "nope"` {
		t.Errorf("error = %#v", perr)
	}
}

func TestErrorConversionPassesOtherErrors(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	if got := QueryError(plain); got != plain {
		t.Errorf("QueryError = %v", got)
	}
	if got := authError(plain); got != plain {
		t.Errorf("authError = %v", got)
	}
	if QueryError(nil) != nil || authError(nil) != nil {
		t.Error("nil error converted to non-nil")
	}
}

func TestAuthErrorWithoutBody(t *testing.T) {
	var perr *Error
	if !errors.As(authError(errors.New("response status code 503")), &perr) {
		t.Fatal("not converted")
	}
	if perr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", perr.StatusCode)
	}
}
