package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chetan-code/supatodo/internal/auth"
	"github.com/chetan-code/supatodo/internal/models"
	"github.com/chetan-code/supatodo/internal/repository"
	"github.com/chetan-code/supatodo/internal/supabase"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies; a todo is a line of text.
const maxBodyBytes = 1 << 20

type TodoHandler struct {
	store repository.Store
}

func NewTodoHandler(s repository.Store) *TodoHandler {
	return &TodoHandler{store: s}
}

// Routes returns the todo API with every route behind AuthMiddleware(v).
func (h *TodoHandler) Routes(v auth.Verifier) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(v))
	r.Get("/todos", h.List)
	r.Post("/todos", h.Create)
	r.Delete("/todos", h.DeleteAll)
	r.Put("/todos/{id}", h.Update)
	r.Delete("/todos/{id}", h.Delete)
	return r
}

// respondWithJSON formats and sends a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("response_encoding_failed", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func writeError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// writeStoreError maps store failures to responses. Anything that is not
// a missing row is an upstream failure and its message goes to the
// caller unchanged.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, repository.ErrNotFound.Error())
		return
	}
	slog.Error("store_"+op+"_failed", "path", r.URL.Path, "error", err)
	msg := err.Error()
	var perr *supabase.Error
	if errors.As(err, &perr) {
		msg = perr.Message
	}
	writeError(w, http.StatusInternalServerError, msg)
}

// caller returns the identity AuthMiddleware attached. Handlers are only
// reachable through the middleware, so a miss means a routing bug.
func caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		slog.Error("identity_missing_from_context", "path", r.URL.Path)
		writeError(w, http.StatusUnauthorized, "access token required")
	}
	return id, ok
}

type createRequest struct {
	Task    string  `json:"task"`
	DueDate *string `json:"due_date"`
}

type updateRequest struct {
	Task      string  `json:"task"`
	Completed *bool   `json:"completed"`
	DueDate   *string `json:"due_date"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request payload: unexpected data after JSON body")
	}
	return nil
}

func validateTask(task string) (string, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return "", errors.New("task is required")
	}
	return task, nil
}

// parseDueDate turns the optional due_date field into a date. Absent,
// null and "" all mean no date.
func parseDueDate(raw *string) (*models.Date, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	d, err := models.ParseInputDate(strings.TrimSpace(*raw))
	if err != nil {
		return nil, fmt.Errorf("due_date: %w", err)
	}
	return &d, nil
}

func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	todos, err := h.store.List(r.Context(), id.User.ID)
	if err != nil {
		writeStoreError(w, r, "list", err)
		return
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := validateTask(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.store.Create(r.Context(), id.User.ID, models.NewTodo{Task: task, DueDate: due})
	if err != nil {
		writeStoreError(w, r, "create", err)
		return
	}
	slog.Info("todo_created", "user_id", id.User.ID, "todo_id", todo.ID)
	respondWithJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	todoID := chi.URLParam(r, "id")

	var req updateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := validateTask(req.Task)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	todo, err := h.store.Update(r.Context(), id.User.ID, todoID, models.TodoUpdate{
		Task:      task,
		Completed: *req.Completed,
		DueDate:   due,
	})
	if err != nil {
		writeStoreError(w, r, "update", err)
		return
	}
	slog.Info("todo_updated", "user_id", id.User.ID, "todo_id", todo.ID)
	respondWithJSON(w, http.StatusOK, todo)
}

func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	todoID := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id.User.ID, todoID); err != nil {
		writeStoreError(w, r, "delete", err)
		return
	}
	slog.Info("todo_deleted", "user_id", id.User.ID, "todo_id", todoID)
	w.WriteHeader(http.StatusNoContent)
}

type deleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *TodoHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.store.DeleteAll(r.Context(), id.User.ID)
	if err != nil {
		writeStoreError(w, r, "delete_all", err)
		return
	}
	slog.Info("todos_cleared", "user_id", id.User.ID, "count", n)
	respondWithJSON(w, http.StatusOK, deleteAllResponse{Deleted: n})
}
