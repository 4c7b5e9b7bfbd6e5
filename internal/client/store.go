package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chetan-code/supatodo/internal/models"
	"github.com/google/uuid"
)

// SuccessBannerTTL is how long a success banner stays visible.
const SuccessBannerTTL = 3 * time.Second

const placeholderPrefix = "pending-"

var (
	ErrEmptyTask       = errors.New("task cannot be empty")
	ErrTodoNotFound    = errors.New("todo not found")
	ErrMutationPending = errors.New("todo has a change in flight")
)

// Filter selects which todos Visible returns.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q (want all, pending or completed)", s)
	}
}

type MutationKind string

const (
	MutationAdd       MutationKind = "add"
	MutationToggle    MutationKind = "toggle"
	MutationEdit      MutationKind = "edit"
	MutationDelete    MutationKind = "delete"
	MutationDeleteAll MutationKind = "delete_all"
)

type MutationState int

const (
	Pending MutationState = iota
	Confirmed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("MutationState(%d)", int(s))
	}
}

// Mutation is one optimistic change. It starts Pending and settles
// exactly once, to Confirmed or RolledBack.
type Mutation struct {
	Kind   MutationKind
	TodoID string
	State  MutationState
	Err    error
}

func (m *Mutation) settle(err error) {
	if m.State != Pending {
		panic(fmt.Sprintf("client: mutation %s on %q settled twice", m.Kind, m.TodoID))
	}
	if err != nil {
		m.State = RolledBack
		m.Err = err
		return
	}
	m.State = Confirmed
}

type BannerKind int

const (
	BannerError BannerKind = iota + 1
	BannerSuccess
)

// Banner is the message shown above the list. Error banners stay until
// dismissed, success banners expire on their own.
type Banner struct {
	Kind    BannerKind
	Message string
	Expires time.Time
}

// Item is a todo as the list shows it. Pending is set while a change to
// it has not been answered by the server.
type Item struct {
	models.Todo
	Pending bool
}

// Store is the client-side todo list.
type Store struct {
	backend Backend
	now     func() time.Time

	mu     sync.Mutex
	loaded bool
	items  []Item
	banner *Banner
	// set while a DeleteAll is in flight
	clearing bool
	// ids removed optimistically whose Delete has not been answered
	deleting map[string]struct{}
}

func NewStore(b Backend) *Store {
	return &Store{backend: b, now: time.Now, deleting: map[string]struct{}{}}
}

// Load fetches the list from the server. After the first successful
// fetch it does nothing.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.banner = nil
	s.mu.Unlock()

	todos, err := s.backend.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setError(err, "Failed to fetch todos")
		return err
	}
	s.items = make([]Item, 0, len(todos))
	for _, t := range todos {
		s.items = append(s.items, Item{Todo: t})
	}
	s.loaded = true
	slog.Debug("todos_loaded", "count", len(todos))
	return nil
}

// Reset forgets everything, for when the user signs out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.items = nil
	s.banner = nil
}

func (s *Store) Add(ctx context.Context, task string, due *models.Date) (Mutation, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Mutation{}, ErrEmptyTask
	}

	placeholder := Item{
		Todo: models.Todo{
			ID:        placeholderPrefix + uuid.NewString(),
			Task:      task,
			Date:      due,
			CreatedAt: s.now(),
		},
		Pending: true,
	}
	m := Mutation{Kind: MutationAdd, TodoID: placeholder.ID}

	s.mu.Lock()
	if s.clearing {
		s.mu.Unlock()
		return m, ErrMutationPending
	}
	s.banner = nil
	s.items = append([]Item{placeholder}, s.items...)
	s.mu.Unlock()

	created, err := s.backend.Create(ctx, models.NewTodo{Task: task, DueDate: due})

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(placeholder.ID)
	if err != nil {
		if i >= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		}
		m.settle(err)
		s.setError(err, "Failed to add todo")
		return m, err
	}
	if i >= 0 {
		s.items[i] = Item{Todo: *created}
	} else {
		s.items = append([]Item{{Todo: *created}}, s.items...)
	}
	m.TodoID = created.ID
	m.settle(nil)
	s.setSuccess("Task added successfully")
	return m, nil
}

// Toggle flips a todo between pending and completed.
func (s *Store) Toggle(ctx context.Context, id string) (Mutation, error) {
	return s.update(ctx, MutationToggle, id, func(t *models.Todo) {
		t.Completed = !t.Completed
	}, "", "Failed to update todo")
}

// Edit replaces the task text and due date of a todo.
func (s *Store) Edit(ctx context.Context, id, task string, due *models.Date) (Mutation, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return Mutation{Kind: MutationEdit, TodoID: id}, ErrEmptyTask
	}
	return s.update(ctx, MutationEdit, id, func(t *models.Todo) {
		t.Task = task
		t.Date = due
	}, "Task updated successfully", "Failed to update todo")
}

func (s *Store) update(ctx context.Context, kind MutationKind, id string, apply func(*models.Todo), okMsg, failMsg string) (Mutation, error) {
	m := Mutation{Kind: kind, TodoID: id}

	s.mu.Lock()
	i, err := s.lockable(id)
	if err != nil {
		s.mu.Unlock()
		return m, err
	}
	before := s.items[i].Todo
	after := before
	apply(&after)
	s.banner = nil
	s.items[i] = Item{Todo: after, Pending: true}
	s.mu.Unlock()

	updated, err := s.backend.Update(ctx, id, models.TodoUpdate{
		Task:      after.Task,
		Completed: after.Completed,
		DueDate:   after.Date,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	i = s.index(id)
	if err != nil {
		if i >= 0 {
			s.items[i] = Item{Todo: before}
		}
		m.settle(err)
		s.setError(err, failMsg)
		return m, err
	}
	if i >= 0 {
		s.items[i] = Item{Todo: *updated}
	}
	m.settle(nil)
	if okMsg != "" {
		s.setSuccess(okMsg)
	}
	return m, nil
}

// Delete removes a todo. On failure it goes back where it was.
func (s *Store) Delete(ctx context.Context, id string) (Mutation, error) {
	m := Mutation{Kind: MutationDelete, TodoID: id}

	s.mu.Lock()
	i, err := s.lockable(id)
	if err != nil {
		s.mu.Unlock()
		return m, err
	}
	removed := s.items[i].Todo
	s.banner = nil
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.deleting[id] = struct{}{}
	s.mu.Unlock()

	err = s.backend.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleting, id)
	if err != nil {
		if i > len(s.items) {
			i = len(s.items)
		}
		s.items = append(s.items[:i], append([]Item{{Todo: removed}}, s.items[i:]...)...)
		m.settle(err)
		s.setError(err, "Failed to delete todo")
		return m, err
	}
	m.settle(nil)
	s.setSuccess("Task deleted successfully")
	return m, nil
}

// DeleteAll empties the list. On failure the whole list comes back.
func (s *Store) DeleteAll(ctx context.Context) (Mutation, error) {
	m := Mutation{Kind: MutationDeleteAll}

	s.mu.Lock()
	if s.clearing || len(s.deleting) > 0 || s.anyPending() {
		s.mu.Unlock()
		return m, ErrMutationPending
	}
	snapshot := s.items
	s.clearing = true
	s.banner = nil
	s.items = nil
	s.mu.Unlock()

	n, err := s.backend.DeleteAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearing = false
	if err != nil {
		s.items = append(snapshot, s.items...)
		m.settle(err)
		s.setError(err, "Failed to delete all todos")
		return m, err
	}
	m.settle(nil)
	slog.Debug("todos_cleared", "deleted", n)
	s.setSuccess("All tasks deleted successfully")
	return m, nil
}

// Visible returns a copy of the list narrowed by f. It never calls the
// server.
func (s *Store) Visible(f Filter) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		switch f {
		case FilterPending:
			if it.Completed {
				continue
			}
		case FilterCompleted:
			if !it.Completed {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// Banner returns the current banner, if any is showing.
func (s *Store) Banner() (Banner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banner == nil {
		return Banner{}, false
	}
	if s.banner.Kind == BannerSuccess && !s.now().Before(s.banner.Expires) {
		s.banner = nil
		return Banner{}, false
	}
	return *s.banner, true
}

func (s *Store) DismissBanner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banner = nil
}

func (s *Store) setError(err error, fallback string) {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	slog.Debug("todo_mutation_failed", "error", msg)
	s.banner = &Banner{Kind: BannerError, Message: msg}
}

func (s *Store) setSuccess(msg string) {
	s.banner = &Banner{Kind: BannerSuccess, Message: msg, Expires: s.now().Add(SuccessBannerTTL)}
}

func (s *Store) index(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// lockable finds id and checks no other change to it is in flight.
func (s *Store) lockable(id string) (int, error) {
	if s.clearing {
		return -1, ErrMutationPending
	}
	if _, ok := s.deleting[id]; ok {
		return -1, ErrMutationPending
	}
	i := s.index(id)
	if i < 0 {
		return -1, ErrTodoNotFound
	}
	if s.items[i].Pending {
		return -1, ErrMutationPending
	}
	return i, nil
}

func (s *Store) anyPending() bool {
	for _, it := range s.items {
		if it.Pending {
			return true
		}
	}
	return false
}
