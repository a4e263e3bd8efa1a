package realtime

import "time"

// Client to server events.
const (
	InPing               = "ping"
	InMarkNotification   = "mark-notification-read"
	InOrderStatusUpdated = "order-status-updated"
	InTaskStatusUpdated  = "task-status-updated"
	InTypingStart        = "typing-start"
	InTypingStop         = "typing-stop"
	InJoinOrder          = "join-order"
	InLeaveOrder         = "leave-order"
	InJoinTask           = "join-task"
	InLeaveTask          = "leave-task"
	InEmergencyAlert     = "emergency-alert"
	InJoinRoom           = "joinRoom"
	InLeaveRoom          = "leaveRoom"
)

// Server to client events.
const (
	EventPong                  = "pong"
	EventUserOnline            = "user-online"
	EventUserOffline           = "user-offline"
	EventNotificationRead      = "notification-read"
	EventOrderStatusChanged    = "order-status-changed"
	EventTaskStatusChanged     = "task-status-changed"
	EventUserTyping            = "user-typing"
	EventUserStoppedTyping     = "user-stopped-typing"
	EventEmergency             = "emergency-notification"
	EventNewNotification       = "newNotification"
	EventOrderUpdated          = "orderUpdated"
	EventNewOrder              = "new-order"
	EventNewTask               = "new-task"
	EventTaskCompleted         = "task-completed"
	EventBroadcastNotification = "broadcast-notification"
	EventError                 = "error"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type PresencePayload struct {
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationReadPayload struct {
	NotificationID int64     `json:"notificationId"`
	ReadAt         time.Time `json:"readAt"`
}

type StatusChangedPayload struct {
	OrderID       int64     `json:"orderId,omitempty"`
	TaskID        int64     `json:"taskId,omitempty"`
	Status        string    `json:"status"`
	Note          string    `json:"note,omitempty"`
	UpdatedBy     int64     `json:"updatedBy"`
	UpdatedByName string    `json:"updatedByName"`
	Timestamp     time.Time `json:"timestamp"`
}

type TypingPayload struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	Room     string `json:"room"`
}

// Inbound payloads.

type notificationRef struct {
	NotificationID int64 `json:"notificationId"`
}

type recordRef struct {
	OrderID int64  `json:"orderId"`
	TaskID  int64  `json:"taskId"`
	Room    string `json:"room"`
}

type statusUpdate struct {
	OrderID int64  `json:"orderId"`
	TaskID  int64  `json:"taskId"`
	Status  string `json:"status"`
	Note    string `json:"note"`
}

type emergencyAlert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
