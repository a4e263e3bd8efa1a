package repository

import (
	"context"
	"strings"
	"time"

	"ordertrack/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Username = strings.TrimSpace(u.Username)
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// GetByLogin finds a user by username or email.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

type UserFilter struct {
	Role       domain.UserRole
	ActiveOnly bool
	OnlineOnly bool
}

func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.OnlineOnly {
		q = q.Where("is_online = ?", true)
	}
	var users []domain.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ActiveIDsByRole returns ids of active users holding role.
func (r *UserRepository) ActiveIDsByRole(ctx context.Context, role domain.UserRole) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPresence records the online flag and last-seen time.
func (r *UserRepository) SetPresence(ctx context.Context, id int64, online bool, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		Updates(map[string]any{"is_online": online, "last_seen_at": at}).Error
}

// ResetPresence marks every user offline. Called once at startup, when no
// socket can still be connected to this instance.
func (r *UserRepository) ResetPresence(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("is_online = ?", true).Update("is_online", false)
	return res.RowsAffected, res.Error
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.BackupCode{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetTwoFactor stores the secret and enabled flag together.
func (r *UserRepository) SetTwoFactor(ctx context.Context, id int64, enabled bool, secret string) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).
		Updates(map[string]any{"two_factor_enabled": enabled, "two_factor_secret": secret}).Error
}

// ReplaceBackupCodes drops every existing code of the user and stores the
// given hashes.
func (r *UserRepository) ReplaceBackupCodes(ctx context.Context, userID int64, hashes []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.BackupCode{}).Error; err != nil {
			return err
		}
		if len(hashes) == 0 {
			return nil
		}
		codes := make([]domain.BackupCode, len(hashes))
		for i, h := range hashes {
			codes[i] = domain.BackupCode{UserID: userID, CodeHash: h}
		}
		return tx.Create(&codes).Error
	})
}

// ConsumeBackupCode marks a matching unused code as used. The used flag is
// part of the WHERE clause, so only one caller can win a given code.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, userID int64, hash string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.BackupCode{}).
		Where("user_id = ? AND code_hash = ? AND used = ?", userID, hash, false).
		Updates(map[string]any{"used": true, "used_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) CountUnusedBackupCodes(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.BackupCode{}).
		Where("user_id = ? AND used = ?", userID, false).Count(&n).Error
	return n, err
}
