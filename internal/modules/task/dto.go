package task

import (
	"time"

	"ordertrack/internal/domain"
)

type CreateTaskRequest struct {
	Title            string          `json:"title" binding:"required,max=255"`
	Description      string          `json:"description"`
	AssignedTo       *int64          `json:"assigned_to"`
	Priority         domain.Priority `json:"priority"`
	Category         string          `json:"category" binding:"max=64"`
	Location         domain.Location `json:"location"`
	OrderID          *int64          `json:"order_id"`
	DueDate          *time.Time      `json:"due_date"`
	EstimatedMinutes int             `json:"estimated_minutes" binding:"gte=0"`
	Steps            []string        `json:"steps" binding:"dive,required,max=255"`
}

// UpdateTaskRequest changes only the fields that are set. Completion goes
// through the complete endpoint.
type UpdateTaskRequest struct {
	Title            *string            `json:"title" binding:"omitempty,max=255"`
	Description      *string            `json:"description"`
	AssignedTo       *int64             `json:"assigned_to"`
	Priority         *domain.Priority   `json:"priority"`
	Category         *string            `json:"category" binding:"omitempty,max=64"`
	Location         *domain.Location   `json:"location"`
	DueDate          *time.Time         `json:"due_date"`
	EstimatedMinutes *int               `json:"estimated_minutes" binding:"omitempty,gte=0"`
	Status           *domain.TaskStatus `json:"status"`
}

type StepRequest struct {
	Completed bool `json:"completed"`
}

type ListQuery struct {
	Status   domain.TaskStatus `form:"status"`
	Priority domain.Priority   `form:"priority"`
	Category string            `form:"category"`
	OrderID  int64             `form:"order_id"`
	Page     int               `form:"page"`
	Limit    int               `form:"limit"`
}

type ListResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}
