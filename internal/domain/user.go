package domain

import "time"

type UserRole string

const (
	RoleAdmin         UserRole = "admin"
	RoleStoreStaff    UserRole = "magaza_personeli"
	RoleFactoryWorker UserRole = "fabrika_iscisi"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleStoreStaff, RoleFactoryWorker:
		return true
	}
	return false
}

// AllRoles lists every role in a stable order.
func AllRoles() []UserRole {
	return []UserRole{RoleAdmin, RoleStoreStaff, RoleFactoryWorker}
}

type User struct {
	ID               int64      `json:"id" gorm:"primaryKey"`
	Username         string     `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email            string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FullName         string     `json:"full_name" gorm:"size:255"`
	PasswordHash     string     `json:"-" gorm:"not null"`
	Role             UserRole   `json:"role" gorm:"size:32;index;not null"`
	IsActive         bool       `json:"is_active" gorm:"not null;default:true"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" gorm:"not null;default:false"`
	TwoFactorSecret  string     `json:"-"`
	IsOnline         bool       `json:"is_online" gorm:"not null;default:false"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DisplayName is the name shown in timelines and notifications.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// BackupCode is a single-use alternate second factor.
// Only the peppered SHA-256 of the code is stored.
type BackupCode struct {
	ID        int64      `json:"id" gorm:"primaryKey"`
	UserID    int64      `json:"user_id" gorm:"index;not null"`
	CodeHash  string     `json:"-" gorm:"size:64;index;not null"`
	Used      bool       `json:"used" gorm:"not null;default:false"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (BackupCode) TableName() string { return "two_factor_backup_codes" }
