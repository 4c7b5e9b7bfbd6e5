package models

import "time"

type Todo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Task      string    `json:"task"`
	Completed bool      `json:"completed"`
	Date      *Date     `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTodo is the body of POST /api/todos
type NewTodo struct {
	Task    string `json:"task"`
	DueDate *Date  `json:"due_date,omitempty"`
}

// TodoUpdate is the body of PUT /api/todos/{id}. The update replaces
// task, completed and date as a whole, a missing due_date clears the date.
type TodoUpdate struct {
	Task      string `json:"task"`
	Completed bool   `json:"completed"`
	DueDate   *Date  `json:"due_date,omitempty"`
}

// User represent the authenticated person as the identity provider sees it
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}
