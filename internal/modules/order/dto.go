package order

import (
	"time"

	"ordertrack/internal/domain"

	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	Name     string          `json:"name" binding:"required,max=255"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" binding:"max=16"`
}

type CreateOrderRequest struct {
	Title        string          `json:"title" binding:"required,max=255"`
	Description  string          `json:"description"`
	CustomerName string          `json:"customer_name" binding:"max=255"`
	Location     domain.Location `json:"location"`
	Priority     domain.Priority `json:"priority"`
	DueDate      *time.Time      `json:"due_date"`
	AssignedTo   *int64          `json:"assigned_to"`
	Items        []ItemRequest   `json:"items" binding:"dive"`
}

type UpdateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
	Note   string             `json:"note"`
}

type AssignRequest struct {
	AssigneeID int64 `json:"assignee_id" binding:"required,gt=0"`
}

type RespondRequest struct {
	Status domain.ResponseStatus   `json:"status" binding:"required"`
	Note   string                  `json:"note"`
	Voice  *domain.VoiceAttachment `json:"voice"`
}

type NoteRequest struct {
	Text string `json:"text" binding:"required"`
}

type ListQuery struct {
	Status   domain.OrderStatus `form:"status"`
	Priority domain.Priority    `form:"priority"`
	Page     int                `form:"page"`
	Limit    int                `form:"limit"`
}

type ListResponse struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// Stats is the per-status count under the caller's read scope.
type Stats struct {
	Total    int64                        `json:"total"`
	ByStatus map[domain.OrderStatus]int64 `json:"by_status"`
}
