package domain

import "time"

type NotificationType string

const (
	NotifOrderCreated       NotificationType = "order_created"
	NotifOrderStatusChanged NotificationType = "order_status_changed"
	NotifOrderAssigned      NotificationType = "order_assigned"
	NotifOrderResponse      NotificationType = "order_response"
	NotifTaskAssigned       NotificationType = "task_assigned"
	NotifTaskCompleted      NotificationType = "task_completed"
	NotifEmergency          NotificationType = "emergency"
	NotifBroadcast          NotificationType = "broadcast"
)

// Notification is either addressed to explicit recipients or is global and
// scoped by TargetRoles. Global notifications get a recipient row only once
// a user reads them.
type Notification struct {
	ID             int64                   `json:"id" gorm:"primaryKey"`
	Title          string                  `json:"title" gorm:"size:255;not null"`
	Message        string                  `json:"message" gorm:"type:text"`
	Type           NotificationType        `json:"type" gorm:"size:32;index;not null"`
	Priority       Priority                `json:"priority" gorm:"size:16;index;not null"`
	SenderID       *int64                  `json:"sender_id,omitempty" gorm:"index"`
	RelatedOrderID *int64                  `json:"related_order_id,omitempty" gorm:"index"`
	RelatedTaskID  *int64                  `json:"related_task_id,omitempty" gorm:"index"`
	IsGlobal       bool                    `json:"is_global" gorm:"index;not null;default:false"`
	TargetRoles    []NotificationRole      `json:"target_roles,omitempty" gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE"`
	Recipients     []NotificationRecipient `json:"-" gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time               `json:"created_at" gorm:"index"`
	ExpiresAt      *time.Time              `json:"expires_at,omitempty" gorm:"index"`

	// Per-viewer read state, filled by the notification service.
	IsRead bool       `json:"is_read" gorm:"-"`
	ReadAt *time.Time `json:"read_at,omitempty" gorm:"-"`
}

type NotificationRole struct {
	ID             int64    `json:"-" gorm:"primaryKey"`
	NotificationID int64    `json:"-" gorm:"index;not null"`
	Role           UserRole `json:"role" gorm:"size:32;index;not null"`
}

func (NotificationRole) TableName() string { return "notification_target_roles" }

type DeliveryChannel string

const (
	ChannelWeb      DeliveryChannel = "web"
	ChannelEmail    DeliveryChannel = "email"
	ChannelWhatsApp DeliveryChannel = "whatsapp"
)

type NotificationRecipient struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	NotificationID int64      `json:"notification_id" gorm:"uniqueIndex:idx_notification_recipient;not null"`
	UserID         int64      `json:"user_id" gorm:"uniqueIndex:idx_notification_recipient;index;not null"`
	WebSent        bool       `json:"web_sent" gorm:"not null;default:false"`
	EmailSent      bool       `json:"email_sent" gorm:"not null;default:false"`
	WhatsAppSent   bool       `json:"whatsapp_sent" gorm:"column:whatsapp_sent;not null;default:false"`
	IsRead         bool       `json:"is_read" gorm:"not null;default:false"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

func (NotificationRecipient) TableName() string { return "notification_recipients" }

// Roles returns the target roles as plain values.
func (n *Notification) Roles() []UserRole {
	out := make([]UserRole, 0, len(n.TargetRoles))
	for _, r := range n.TargetRoles {
		out = append(out, r.Role)
	}
	return out
}

// RecipientIDs returns the explicit recipient user ids.
func (n *Notification) RecipientIDs() []int64 {
	out := make([]int64, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		out = append(out, r.UserID)
	}
	return out
}

// Models lists every persisted entity, for migrations.
func Models() []any {
	return []any{
		&User{},
		&BackupCode{},
		&Order{},
		&OrderItem{},
		&TimelineEntry{},
		&OrderResponse{},
		&OrderNote{},
		&Task{},
		&TaskStep{},
		&Notification{},
		&NotificationRole{},
		&NotificationRecipient{},
	}
}
