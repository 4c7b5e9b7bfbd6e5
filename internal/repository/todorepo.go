package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"github.com/google/uuid"
)

// TodoRepo stores todos in PostgreSQL through database/sql and the pgx
// driver.
type TodoRepo struct {
	db *sql.DB
}

var _ Store = (*TodoRepo)(nil)

func NewTodoRepo(ctx context.Context, db *sql.DB) (*TodoRepo, error) {
	repo := &TodoRepo{db: db}

	err := repo.CreateTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not initialize table: %w", err)
	}

	return repo, nil
}

func (r *TodoRepo) CreateTable(ctx context.Context) error {
	createTableQuery := `CREATE TABLE IF NOT EXISTS todos(
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		task TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS todos_user_created_idx ON todos (user_id, created_at DESC);`
	_, err := r.db.ExecContext(ctx, createTableQuery)
	return err
}

const todoColumns = "id, user_id, task, completed, date, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var t models.Todo
	var date sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Task, &t.Completed, &date, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if date.Valid {
		d := models.NewDate(date.Time.Year(), date.Time.Month(), date.Time.Day())
		t.Date = &d
	}
	return &t, nil
}

// dateArg turns an optional date into a query argument, nil for NULL.
func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func (r *TodoRepo) List(ctx context.Context, userID string) ([]models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE user_id = $1 ORDER BY created_at DESC, id"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //close the rows in the end

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *t)
	}
	return todos, rows.Err()
}

func (r *TodoRepo) Create(ctx context.Context, userID string, in models.NewTodo) (*models.Todo, error) {
	// placeholders ($1, $2) keep user input out of the statement text
	query := `INSERT INTO todos (id, user_id, task, completed, date)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING ` + todoColumns
	return scanTodo(r.db.QueryRowContext(ctx, query, uuid.NewString(), userID, in.Task, dateArg(in.DueDate)))
}

func (r *TodoRepo) Update(ctx context.Context, userID, id string, in models.TodoUpdate) (*models.Todo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `UPDATE todos SET task = $1, completed = $2, date = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING ` + todoColumns
	t, err := scanTodo(r.db.QueryRowContext(ctx, query, in.Task, in.Completed, dateArg(in.DueDate), time.Now().UTC(), id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *TodoRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	query := "DELETE FROM todos WHERE id = $1 AND user_id = $2"
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TodoRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	query := "DELETE FROM todos WHERE user_id = $1"
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
