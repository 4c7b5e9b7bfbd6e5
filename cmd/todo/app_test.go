package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chetan-code/supatodo/internal/auth"
	"github.com/chetan-code/supatodo/internal/client"
	"github.com/chetan-code/supatodo/internal/config"
	"github.com/chetan-code/supatodo/internal/handler"
	"github.com/chetan-code/supatodo/internal/models"
	"github.com/chetan-code/supatodo/internal/repository"
	"github.com/go-chi/chi/v5"
)

var testSecret = []byte("test-secret-with-enough-bytes-000")

const testUserID = "6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b"

// fakeGoTrue signs in a@example.com with password "pw".
func fakeGoTrue(t *testing.T) *httptest.Server {
	t.Helper()
	user := models.User{ID: testUserID, Email: "a@example.com"}
	mux := chi.NewRouter()
	mux.Post("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Email != user.Email || body.Password != "pw" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		token, err := auth.SignToken(testSecret, user, time.Hour)
		if err != nil {
			t.Errorf("SignToken: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-1",
			"user":          user,
		})
	})
	mux.Post("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// todoAPI runs the real API over a SQLite store with local token checks.
func todoAPI(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "todos.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	verifier, err := auth.NewJWTVerifier(testSecret, auth.DefaultAudience)
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	r := chi.NewRouter()
	r.Mount("/api", handler.NewTodoHandler(store).Routes(verifier))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	t   *testing.T
	cfg *config.ClientConfig
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, cfg: &config.ClientConfig{
		SupabaseURL:   fakeGoTrue(t).URL,
		AnonKey:       "anon",
		APIURL:        todoAPI(t).URL,
		SessionFile:   filepath.Join(t.TempDir(), "session"),
		SessionSecret: "s3cret",
	}}
}

// run executes one command the way a fresh process would.
func (h *harness) run(args ...string) (*app, string, error) {
	h.t.Helper()
	var out bytes.Buffer
	a, err := newApp(context.Background(), h.cfg, strings.NewReader(""), &out)
	if err != nil {
		h.t.Fatalf("newApp: %v", err)
	}
	err = a.dispatch(context.Background(), args)
	return a, out.String(), err
}

func TestGuardedCommandReplaysAfterSignIn(t *testing.T) {
	h := newHarness(t)

	if _, _, err := h.run("list", "--filter", "pending"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("list before sign in: %v", err)
	}

	_, out, err := h.run("signin", "--email", "a@example.com", "--password", "pw")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if !strings.Contains(out, "Signed in as a@example.com") || !strings.Contains(out, "No tasks") {
		t.Fatalf("signin output = %q", out)
	}

	//the remembered command is consumed
	_, out, err = h.run("signout")
	if err != nil {
		t.Fatalf("signout: %v", err)
	}
	_, out, err = h.run("signin", "--email", "a@example.com", "--password", "pw")
	if err != nil || strings.Contains(out, "No tasks") {
		t.Fatalf("second signin = %q, %v", out, err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("signin", "--email", "a@example.com", "--password", "nope")
	if err == nil || !strings.Contains(err.Error(), "Invalid login credentials") {
		t.Fatalf("err = %v", err)
	}
}

func TestTodoLifecycle(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.run("signin", "--email", "a@example.com", "--password", "pw"); err != nil {
		t.Fatalf("signin: %v", err)
	}

	a, out, err := h.run("add", "buy", "milk", "--due", "2024-01-01")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Task added successfully") || !strings.Contains(out, "buy milk") || !strings.Contains(out, "due 2024-01-01") {
		t.Fatalf("add output = %q", out)
	}
	id := a.store.Visible(client.FilterAll)[0].ID

	if _, out, err = h.run("toggle", id); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(out, "[x]") {
		t.Fatalf("toggle output = %q", out)
	}
	if _, out, _ = h.run("list", "--filter", "pending"); !strings.Contains(out, "No tasks") {
		t.Fatalf("pending list = %q", out)
	}

	if _, out, err = h.run("edit", id, "buy", "oat", "milk"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "buy oat milk") || strings.Contains(out, "due ") {
		t.Fatalf("edit output = %q", out)
	}

	h.run("add", "walk dog")
	if _, out, err = h.run("rm", id); err != nil || !strings.Contains(out, "Task deleted successfully") {
		t.Fatalf("rm = %q, %v", out, err)
	}
	if _, out, err = h.run("clear"); err != nil || !strings.Contains(out, "All tasks deleted successfully") {
		t.Fatalf("clear = %q, %v", out, err)
	}
	if _, out, _ = h.run("list"); !strings.Contains(out, "No tasks") {
		t.Fatalf("list after clear = %q", out)
	}
}

func TestRemoveUnknownTodo(t *testing.T) {
	h := newHarness(t)
	h.run("signin", "--email", "a@example.com", "--password", "pw")

	_, _, err := h.run("rm", "does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "todo not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestWhoami(t *testing.T) {
	h := newHarness(t)
	h.run("signin", "--email", "a@example.com", "--password", "pw")

	_, out, err := h.run("whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, testUserID) || !strings.Contains(out, "a@example.com") {
		t.Fatalf("whoami output = %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	if _, _, err := h.run("frobnicate"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v", err)
	}
}
