package user

import "ordertrack/internal/domain"

type RegisterRequest struct {
	Username string          `json:"username" binding:"required,min=3,max=64"`
	Email    string          `json:"email" binding:"required,email"`
	FullName string          `json:"full_name" binding:"max=255"`
	Password string          `json:"password" binding:"required,min=8"`
	Role     domain.UserRole `json:"role" binding:"required"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type ListQuery struct {
	Role       domain.UserRole `form:"role"`
	ActiveOnly bool            `form:"active_only"`
}
