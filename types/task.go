package types

import "time"

// Task represents a single to-do item owned by exactly one user.
// Tasks are only ever reachable through owner-filtered accessors; the
// owner is set from the authenticated caller at creation and never
// taken from client input.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// Description is the task text. Stored trimmed; required.
	Description string `json:"description" db:"description"`

	// Completed marks the task as done. Defaults to false.
	Completed bool `json:"completed" db:"completed"`

	// OwnerID is the identifier of the user who owns this task.
	OwnerID int `json:"owner_id" db:"owner_id"`

	// CreatedAt is the timestamp at which the task was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the task.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
