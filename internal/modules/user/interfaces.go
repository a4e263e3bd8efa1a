package user

import (
	"context"

	"ordertrack/internal/domain"
	"ordertrack/internal/repository"
)

// UserRepository is implemented by repository.UserRepository.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context, f repository.UserFilter) ([]domain.User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
