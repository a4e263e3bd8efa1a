package task

import (
	"context"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/repository"

	"gorm.io/gorm/clause"
)

// TaskRepository is implemented by repository.TaskRepository.
type TaskRepository interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
	List(ctx context.Context, scope clause.Expression, f repository.TaskFilter) ([]domain.Task, int64, error)
	Save(ctx context.Context, t *domain.Task, from domain.TaskStatus) error
	UpdateProgress(ctx context.Context, taskID int64, apply func(t *domain.Task) (*domain.TaskStep, error)) (*domain.Task, error)
	Delete(ctx context.Context, id int64) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, ev notification.Event) (*domain.Notification, error)
}
