package repository

import (
	"context"

	"github.com/fastygo/taskflow/domain"
)

// TaskFilter scopes a listing to one owner. Limit 0 means no limit.
type TaskFilter struct {
	UserID string
	Status domain.Status
	Limit  int
	Offset int
}

// TaskRepository persists tasks. Every method is scoped to the owning user:
// a task that exists but belongs to someone else is reported as
// domain.ErrTaskNotFound.
type TaskRepository interface {
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	GetByID(ctx context.Context, userID, id string) (*domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Patch(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, userID, id string) error
}
