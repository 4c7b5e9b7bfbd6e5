package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS todos (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	task       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	date       TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS todos_user_created_idx ON todos (user_id, created_at DESC);
`

// SQLiteStore keeps todos in a local SQLite file. It is meant for local
// development where no provider project is available.
//
// Timestamps are stored as unix nanoseconds so ORDER BY created_at is a
// numeric sort.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path. Every
// connection gets WAL journaling, a busy timeout, and the todos schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := runtime.NumCPU()
	if poolSize < 4 {
		poolSize = 4
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareSQLiteConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}
	logger.Info("sqlite_store_opened", "path", path, "pool_size", poolSize)

	return &SQLiteStore{pool: pool, logger: logger, now: time.Now}, nil
}

func prepareSQLiteConn(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
}

func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// withConn borrows a connection for the duration of fn.
func (s *SQLiteStore) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

const sqliteColumns = "id, user_id, task, completed, date, created_at, updated_at"

func readSQLiteTodo(stmt *sqlite.Stmt) (models.Todo, error) {
	t := models.Todo{
		ID:        stmt.ColumnText(0),
		UserID:    stmt.ColumnText(1),
		Task:      stmt.ColumnText(2),
		Completed: stmt.ColumnInt64(3) != 0,
		CreatedAt: time.Unix(0, stmt.ColumnInt64(5)).UTC(),
		UpdatedAt: time.Unix(0, stmt.ColumnInt64(6)).UTC(),
	}
	if !stmt.ColumnIsNull(4) {
		d, err := models.ParseDate(stmt.ColumnText(4))
		if err != nil {
			return t, err
		}
		t.Date = &d
	}
	return t, nil
}

func sqliteDate(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]models.Todo, error) {
	todos := []models.Todo{}
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT "+sqliteColumns+" FROM todos WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
			&sqlitex.ExecOptions{
				Args: []any{userID},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					t, err := readSQLiteTodo(stmt)
					if err != nil {
						return err
					}
					todos = append(todos, t)
					return nil
				},
			})
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// one runs a statement expected to RETURN at most one row.
func (s *SQLiteStore) one(ctx context.Context, query string, args ...any) (*models.Todo, error) {
	var found *models.Todo
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := readSQLiteTodo(stmt)
				if err != nil {
					return err
				}
				found = &t
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *SQLiteStore) Create(ctx context.Context, userID string, in models.NewTodo) (*models.Todo, error) {
	now := s.now().UnixNano()
	t, err := s.one(ctx,
		"INSERT INTO todos (id, user_id, task, completed, date, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?, ?) RETURNING "+sqliteColumns,
		uuid.NewString(), userID, in.Task, sqliteDate(in.DueDate), now, now)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("sqlite: insert returned no row")
	}
	return t, nil
}

func (s *SQLiteStore) Update(ctx context.Context, userID, id string, in models.TodoUpdate) (*models.Todo, error) {
	t, err := s.one(ctx,
		"UPDATE todos SET task = ?, completed = ?, date = ?, updated_at = ? WHERE id = ? AND user_id = ? RETURNING "+sqliteColumns,
		in.Task, boolInt(in.Completed), sqliteDate(in.DueDate), s.now().UnixNano(), id, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM todos WHERE id = ? AND user_id = ?", &sqlitex.ExecOptions{
			Args: []any{id, userID},
		})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "DELETE FROM todos WHERE user_id = ?", &sqlitex.ExecOptions{
			Args: []any{userID},
		})
		n = int64(conn.Changes())
		return err
	})
	return n, err
}
