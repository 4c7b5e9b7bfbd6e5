package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/chetan-code/supatodo/internal/auth"
	"github.com/chetan-code/supatodo/internal/models"
	"github.com/chetan-code/supatodo/internal/supabase"
	"github.com/supabase-community/postgrest-go"
)

const todosTable = "todos"

// postgres "invalid_text_representation", what PostgREST reports for an
// id that cannot be a row id at all
const invalidTextRepresentation = "22P02"

// SupabaseStore keeps todos in the provider's todos table through
// PostgREST. When the request context carries the caller's identity its
// access token is forwarded, so the table's row-level security applies
// on top of the explicit user_id filters.
type SupabaseStore struct {
	client *supabase.Client
}

var _ Store = (*SupabaseStore)(nil)

func NewSupabaseStore(c *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: c}
}

// rowID accepts both numeric and string primary keys.
type rowID string

func (id *rowID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = rowID(s)
		return nil
	}
	*id = rowID(bytes.TrimSpace(b))
	return nil
}

type todoRow struct {
	ID        rowID        `json:"id"`
	UserID    string       `json:"user_id"`
	Task      string       `json:"task"`
	Completed bool         `json:"completed"`
	Date      *models.Date `json:"date"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (r todoRow) todo() models.Todo {
	return models.Todo{
		ID:        string(r.ID),
		UserID:    r.UserID,
		Task:      r.Task,
		Completed: r.Completed,
		Date:      r.Date,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// from starts a query on the todos table as the caller in ctx.
func (s *SupabaseStore) from(ctx context.Context) *postgrest.QueryBuilder {
	var token string
	if id, ok := auth.IdentityFromContext(ctx); ok {
		token = id.Token
	}
	return s.client.Rest(ctx, token).From(todosTable)
}

func isInvalidID(err error) bool {
	var perr *supabase.Error
	return errors.As(err, &perr) && perr.Code == invalidTextRepresentation
}

func (s *SupabaseStore) List(ctx context.Context, userID string) ([]models.Todo, error) {
	var rows []todoRow
	_, err := s.from(ctx).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, supabase.QueryError(err)
	}
	todos := make([]models.Todo, 0, len(rows))
	for _, r := range rows {
		todos = append(todos, r.todo())
	}
	return todos, nil
}

func (s *SupabaseStore) Create(ctx context.Context, userID string, in models.NewTodo) (*models.Todo, error) {
	insert := map[string]any{
		"task":      in.Task,
		"user_id":   userID,
		"completed": false,
		"date":      in.DueDate,
	}
	var rows []todoRow
	_, err := s.from(ctx).
		Insert([]map[string]any{insert}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, supabase.QueryError(err)
	}
	if len(rows) != 1 {
		return nil, errors.New("insert did not return the created row")
	}
	t := rows[0].todo()
	return &t, nil
}

func (s *SupabaseStore) Update(ctx context.Context, userID, id string, in models.TodoUpdate) (*models.Todo, error) {
	values := map[string]any{
		"task":       in.Task,
		"completed":  in.Completed,
		"date":       in.DueDate,
		"updated_at": time.Now().UTC(),
	}
	var rows []todoRow
	_, err := s.from(ctx).
		Update(values, "representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	err = supabase.QueryError(err)
	if isInvalidID(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	t := rows[0].todo()
	return &t, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, userID, id string) error {
	var rows []todoRow
	_, err := s.from(ctx).
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	err = supabase.QueryError(err)
	if isInvalidID(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupabaseStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	var rows []todoRow
	_, err := s.from(ctx).
		Delete("representation", "").
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return 0, supabase.QueryError(err)
	}
	return int64(len(rows)), nil
}
