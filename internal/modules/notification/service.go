package notification

import (
	"context"
	"errors"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/repository"

	"gorm.io/gorm/clause"
)

// Repository is the read side of the notification store.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	ListVisible(ctx context.Context, scope clause.Expression, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, scope clause.Expression, userID int64) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID int64, at time.Time) error
	MarkAllRead(ctx context.Context, scope clause.Expression, userID int64, at time.Time) (int64, error)
}

type Service struct {
	repo       Repository
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewService(repo Repository, dispatcher *Dispatcher) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, now: time.Now}
}

type ListQuery struct {
	UnreadOnly bool
	Limit      int
}

// List returns what the viewer may see: explicit notifications plus global
// ones for the viewer's role created since the account exists.
func (s *Service) List(ctx context.Context, viewer access.Viewer, q ListQuery) ([]domain.Notification, error) {
	scope := access.NotificationScope(viewer).Build()
	return s.repo.ListVisible(ctx, scope, viewer.ID, q.UnreadOnly, q.Limit)
}

func (s *Service) UnreadCount(ctx context.Context, viewer access.Viewer) (int64, error) {
	return s.repo.CountUnread(ctx, access.NotificationScope(viewer).Build(), viewer.ID)
}

// MarkRead marks one visible notification read for the viewer. Invisible
// notifications are reported as missing.
func (s *Service) MarkRead(ctx context.Context, viewer access.Viewer, id int64) (time.Time, error) {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, ErrNotificationNotFound
		}
		return time.Time{}, err
	}
	if !access.CanViewNotification(viewer, n) {
		return time.Time{}, ErrNotificationNotFound
	}
	at := s.now()
	if err := s.repo.MarkRead(ctx, id, viewer.ID, at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

func (s *Service) MarkAllRead(ctx context.Context, viewer access.Viewer) (int64, time.Time, error) {
	at := s.now()
	n, err := s.repo.MarkAllRead(ctx, access.NotificationScope(viewer).Build(), viewer.ID, at)
	return n, at, err
}

// Broadcast sends an admin announcement to the chosen roles.
func (s *Service) Broadcast(ctx context.Context, viewer access.Viewer, actor domain.Actor, req BroadcastRequest) (*domain.Notification, error) {
	if !access.CanBroadcast(viewer) {
		return nil, ErrBroadcastForbidden
	}
	roles := validRoles(req.Roles)
	if len(roles) == 0 {
		return nil, ErrNoAudience
	}
	return s.dispatcher.Dispatch(ctx, Event{
		Type:     domain.NotifBroadcast,
		Actor:    actor,
		Title:    req.Title,
		Message:  req.Message,
		Priority: req.Priority,
		Roles:    roles,
	})
}
