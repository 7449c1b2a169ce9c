package services

import (
	"context"
	"strings"

	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

const maxTaskPageSize = 100

// TaskRepository defines owner-scoped persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, ownerID int, filter store.TaskFilter) ([]types.Task, error)
	Get(ctx context.Context, id, ownerID int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id, ownerID int) error
}

// TaskUpdate carries the only two mutable task fields. Nil leaves a
// field unchanged.
type TaskUpdate struct {
	Description *string
	Completed   *bool
}

// TaskService encapsulates task use-cases. The owner id on every call
// comes from the authenticated caller, never from client input.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

// Create stores a new task owned by ownerID.
func (s *TaskService) Create(ctx context.Context, ownerID int, description string, completed bool) (types.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return types.Task{}, &ValidationError{Field: "description", Reason: "is required"}
	}
	return s.repo.Create(ctx, types.Task{
		Description: description,
		Completed:   completed,
		OwnerID:     ownerID,
	})
}

// List returns the caller's tasks, filtered and paginated.
func (s *TaskService) List(ctx context.Context, ownerID int, filter store.TaskFilter) ([]types.Task, error) {
	if filter.Limit > maxTaskPageSize {
		filter.Limit = maxTaskPageSize
	}
	return s.repo.List(ctx, ownerID, filter)
}

// Get fetches one task. A task owned by a different user is reported
// as not found.
func (s *TaskService) Get(ctx context.Context, id, ownerID int) (types.Task, error) {
	return s.repo.Get(ctx, id, ownerID)
}

// Update applies description/completed changes to the caller's task.
func (s *TaskService) Update(ctx context.Context, id, ownerID int, update TaskUpdate) (types.Task, error) {
	task, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return types.Task{}, err
	}

	if update.Description != nil {
		description := strings.TrimSpace(*update.Description)
		if description == "" {
			return types.Task{}, &ValidationError{Field: "description", Reason: "is required"}
		}
		task.Description = description
	}
	if update.Completed != nil {
		task.Completed = *update.Completed
	}

	return s.repo.Update(ctx, task)
}

// Delete removes the caller's task and returns it.
func (s *TaskService) Delete(ctx context.Context, id, ownerID int) (types.Task, error) {
	task, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		return types.Task{}, err
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}
