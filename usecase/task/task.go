package task

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskflow/domain"
	appLogger "github.com/fastygo/taskflow/pkg/logger"
	"github.com/fastygo/taskflow/repository"
)

// UseCase implements ownership-scoped task operations. Concurrent edits to
// the same task are last-writer-wins.
type UseCase struct {
	tasks  repository.TaskRepository
	logger *zap.Logger
}

func New(tasks repository.TaskRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:  tasks,
		logger: logger,
	}
}

// ListQuery narrows a listing. A zero Limit returns every matching task.
type ListQuery struct {
	Status domain.Status
	Limit  int
	Offset int
}

// ListTasks returns the owner's tasks, newest first.
func (uc *UseCase) ListTasks(ctx context.Context, userID string, q ListQuery) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "Invalid status filter.")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, domain.ErrInvalidPage
	}
	return uc.tasks.List(ctx, repository.TaskFilter{
		UserID: userID,
		Status: q.Status,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

func (uc *UseCase) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if !validID(id) {
		return nil, domain.ErrTaskNotFound
	}
	return uc.tasks.GetByID(ctx, userID, id)
}

// CreateTask inserts a task owned by userID.
func (uc *UseCase) CreateTask(ctx context.Context, userID string, fields domain.TaskFields) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	task := &domain.Task{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	fields.Apply(task)

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	appLogger.FromContext(ctx, uc.logger).Debug("task created", zap.String("task_id", created.ID))
	return created, nil
}

// ReplaceTask overwrites every caller-controlled field. Ownership is checked
// by the update statement itself.
func (uc *UseCase) ReplaceTask(ctx context.Context, userID, id string, fields domain.TaskFields) (*domain.Task, error) {
	if !validID(id) {
		return nil, domain.ErrTaskNotFound
	}
	task := &domain.Task{ID: id, UserID: userID}
	fields.Apply(task)
	return uc.tasks.Update(ctx, task)
}

// PatchTask applies only the supplied fields after confirming the task
// belongs to userID.
func (uc *UseCase) PatchTask(ctx context.Context, userID, id string, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.IsEmpty() {
		return nil, domain.ErrEmptyPatch
	}
	if _, err := uc.GetTask(ctx, userID, id); err != nil {
		return nil, err
	}
	return uc.tasks.Patch(ctx, userID, id, patch)
}

// DeleteTask removes the task in a single owner-scoped statement.
func (uc *UseCase) DeleteTask(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return domain.ErrTaskNotFound
	}
	return uc.tasks.Delete(ctx, userID, id)
}

// RemoveTask confirms ownership with a read before deleting.
func (uc *UseCase) RemoveTask(ctx context.Context, userID, id string) error {
	if _, err := uc.GetTask(ctx, userID, id); err != nil {
		return err
	}
	return uc.tasks.Delete(ctx, userID, id)
}

// validID rejects ids Postgres would refuse to compare against a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
