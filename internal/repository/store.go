// Package repository holds the todo stores. Every method takes the
// caller's user id and applies it as an ownership predicate, so a caller
// can only ever see or change its own rows regardless of whether the
// backing database also enforces row-level security.
//
// Errors from the underlying database or provider are returned
// unwrapped: the API reports them to the caller verbatim.
package repository

import (
	"context"
	"errors"

	"github.com/chetan-code/supatodo/internal/models"
)

// ErrNotFound is returned by Update and Delete when no row matched both
// the id and the owner. A row owned by someone else is indistinguishable
// from a missing one.
var ErrNotFound = errors.New("todo not found")

type Store interface {
	// List returns the owner's todos, newest first.
	List(ctx context.Context, userID string) ([]models.Todo, error)
	Create(ctx context.Context, userID string, in models.NewTodo) (*models.Todo, error)
	Update(ctx context.Context, userID, id string, in models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, userID, id string) error
	// DeleteAll removes every todo of the owner and reports how many.
	DeleteAll(ctx context.Context, userID string) (int64, error)
}
