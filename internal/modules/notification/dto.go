package notification

import "ordertrack/internal/domain"

type BroadcastRequest struct {
	Title    string            `json:"title" binding:"required,max=255"`
	Message  string            `json:"message" binding:"required"`
	Priority domain.Priority   `json:"priority"`
	Roles    []domain.UserRole `json:"roles" binding:"required,min=1"`
}

type ListResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}
