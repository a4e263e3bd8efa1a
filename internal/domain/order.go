package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Order statuses in workflow order.
const (
	OrderCreated      OrderStatus = "olusturuldu"
	OrderApproved     OrderStatus = "onaylandi"
	OrderPreparing    OrderStatus = "hazirlaniyor"
	OrderInProduction OrderStatus = "uretimde"
	OrderQualityCheck OrderStatus = "kalite_kontrol"
	OrderPacked       OrderStatus = "paketlendi"
	OrderShipped      OrderStatus = "sevk_edildi"
	OrderDelivered    OrderStatus = "teslim_edildi"
	OrderOnHold       OrderStatus = "beklemede"
	OrderCompleted    OrderStatus = "tamamlandi"
	OrderCancelled    OrderStatus = "iptal_edildi"
)

var orderStatuses = []OrderStatus{
	OrderCreated, OrderApproved, OrderPreparing, OrderInProduction, OrderQualityCheck,
	OrderPacked, OrderShipped, OrderDelivered, OrderOnHold, OrderCompleted, OrderCancelled,
}

// OrderStatuses returns all statuses in workflow order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further status changes.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type ResponseStatus string

const (
	ResponseReceived  ResponseStatus = "alindi"
	ResponseApproved  ResponseStatus = "onaylandi"
	ResponseRejected  ResponseStatus = "reddedildi"
	ResponsePreparing ResponseStatus = "hazirlaniyor"
	ResponseDone      ResponseStatus = "tamamlandi"
	ResponseProblem   ResponseStatus = "sorun_var"
)

func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseReceived, ResponseApproved, ResponseRejected, ResponsePreparing, ResponseDone, ResponseProblem:
		return true
	}
	return false
}

type TimelineKind string

const (
	TimelineCreated      TimelineKind = "created"
	TimelineUpdated      TimelineKind = "updated"
	TimelineResponse     TimelineKind = "response"
	TimelineStatusChange TimelineKind = "status_change"
	TimelineNote         TimelineKind = "note"
	TimelineAssigned     TimelineKind = "assigned"
)

const orderNumberPrefix = "SIP-"

// OrderNumberPrefix returns the day-scoped prefix, e.g. "SIP-20261018-".
func OrderNumberPrefix(day time.Time) string {
	return orderNumberPrefix + day.Format("20060102") + "-"
}

// FormatOrderNumber renders SIP-YYYYMMDD-NNN.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", OrderNumberPrefix(day), seq)
}

// OrderSequence extracts NNN from an order number, or 0 if it does not parse.
func OrderSequence(number string) int {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || !strings.HasPrefix(number, orderNumberPrefix) {
		return 0
	}
	n, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

type Order struct {
	ID           int64       `json:"id" gorm:"primaryKey"`
	OrderNumber  string      `json:"order_number" gorm:"size:32;uniqueIndex;not null"`
	Title        string      `json:"title" gorm:"size:255;not null"`
	Description  string      `json:"description,omitempty" gorm:"type:text"`
	CustomerName string      `json:"customer_name,omitempty" gorm:"size:255"`
	CreatedBy    int64       `json:"created_by" gorm:"index;not null"`
	AssignedTo   *int64      `json:"assigned_to,omitempty" gorm:"index"`
	Location     Location    `json:"location" gorm:"size:16;index;not null"`
	Status       OrderStatus `json:"status" gorm:"size:32;index;not null"`
	Priority     Priority    `json:"priority" gorm:"size:16;index;not null"`
	DueDate      *time.Time  `json:"due_date,omitempty"`
	CreatedAt    time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time   `json:"updated_at"`

	Items     []OrderItem     `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline  []TimelineEntry `json:"timeline,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Responses []OrderResponse `json:"responses,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Notes     []OrderNote     `json:"notes,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// IsAssignedTo reports whether userID is the current assignee.
func (o *Order) IsAssignedTo(userID int64) bool {
	return o.AssignedTo != nil && *o.AssignedTo == userID
}

type OrderItem struct {
	ID       int64           `json:"id" gorm:"primaryKey"`
	OrderID  int64           `json:"-" gorm:"index;not null"`
	Name     string          `json:"name" gorm:"size:255;not null"`
	Quantity decimal.Decimal `json:"quantity" gorm:"type:decimal(12,3);not null"`
	Unit     string          `json:"unit" gorm:"size:16"`
}

func (OrderItem) TableName() string { return "order_items" }

// TimelineEntry is one row of the append-only order log.
type TimelineEntry struct {
	ID        int64        `json:"id" gorm:"primaryKey"`
	OrderID   int64        `json:"-" gorm:"index;not null"`
	Kind      TimelineKind `json:"kind" gorm:"size:32;not null"`
	ActorID   int64        `json:"actor_id"`
	ActorName string       `json:"actor_name" gorm:"size:255"`
	Status    string       `json:"status,omitempty" gorm:"size:32"`
	Note      string       `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"index"`
}

func (TimelineEntry) TableName() string { return "order_timeline" }

type VoiceAttachment struct {
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
	MimeType        string `json:"mime_type"`
	SizeBytes       int64  `json:"size_bytes"`
}

// OrderResponse is a status reply posted on an order. Append-only.
type OrderResponse struct {
	ID        int64            `json:"id" gorm:"primaryKey"`
	OrderID   int64            `json:"-" gorm:"index;not null"`
	Status    ResponseStatus   `json:"status" gorm:"size:32;not null"`
	Note      string           `json:"note,omitempty" gorm:"type:text"`
	Voice     *VoiceAttachment `json:"voice,omitempty" gorm:"serializer:json"`
	ActorID   int64            `json:"actor_id" gorm:"index"`
	ActorName string           `json:"actor_name" gorm:"size:255"`
	CreatedAt time.Time        `json:"created_at"`
}

func (OrderResponse) TableName() string { return "order_responses" }

type OrderNote struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	OrderID   int64     `json:"-" gorm:"index;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderNote) TableName() string { return "order_notes" }
