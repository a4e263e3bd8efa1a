package order

import (
	"context"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/repository"

	"gorm.io/gorm/clause"
)

// OrderRepository is implemented by repository.OrderRepository.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	LastNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	GetByID(ctx context.Context, id int64, details bool) (*domain.Order, error)
	List(ctx context.Context, scope clause.Expression, f repository.OrderFilter) ([]domain.Order, int64, error)
	StatusCounts(ctx context.Context, scope clause.Expression) (map[domain.OrderStatus]int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, entry *domain.TimelineEntry) error
	Assign(ctx context.Context, id int64, assigneeID int64, entry *domain.TimelineEntry) error
	AppendResponse(ctx context.Context, resp *domain.OrderResponse, entry *domain.TimelineEntry) error
	AppendNote(ctx context.Context, note *domain.OrderNote, entry *domain.TimelineEntry) error
	Delete(ctx context.Context, id int64) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Notifier is implemented by notification.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, ev notification.Event) (*domain.Notification, error)
}
