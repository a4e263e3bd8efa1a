// Package notification persists notifications and pushes them to the rooms
// of their audience.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/realtime"

	"github.com/rs/zerolog"
)

// Store is the persistence the dispatcher needs.
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkDelivered(ctx context.Context, notificationID int64, userIDs []int64, channel domain.DeliveryChannel) error
}

// Directory resolves users for fan-out and email addresses.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ActiveIDsByRole(ctx context.Context, role domain.UserRole) ([]int64, error)
}

// Event is one domain happening. Type selects the audience; the record
// fields that type needs must be set.
type Event struct {
	Type  domain.NotificationType
	Actor domain.Actor

	Order          *domain.Order
	Task           *domain.Task
	Response       *domain.OrderResponse
	PreviousStatus string

	// Broadcast and emergency only.
	Title    string
	Message  string
	Priority domain.Priority
	Roles    []domain.UserRole
}

// LivePayload is the minimal notification pushed over the socket.
type LivePayload struct {
	ID        int64                   `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	RelatedID *int64                  `json:"relatedId,omitempty"`
	Priority  domain.Priority         `json:"priority"`
	Timestamp time.Time               `json:"timestamp"`
}

// recordPayload carries the record behind the notification for the
// record-specific events (new-order, orderUpdated, new-task, ...).
type recordPayload struct {
	LivePayload
	Order          *domain.Order         `json:"order,omitempty"`
	Task           *domain.Task          `json:"task,omitempty"`
	Response       *domain.OrderResponse `json:"response,omitempty"`
	PreviousStatus string                `json:"previousStatus,omitempty"`
}

// plan is the resolved audience of one event.
type plan struct {
	note       *domain.Notification
	recipients []int64 // explicit recipients, persisted
	extraLive  []int64 // live-only users
	rooms      []string
	events     []string
}

type Dispatcher struct {
	store  Store
	users  Directory
	emit   *realtime.Emitter
	mailer Mailer
	ttl    time.Duration
	log    zerolog.Logger
	now    func() time.Time
}

// NewDispatcher wires the dispatcher. emit and mailer may be nil; a nil
// emitter only logs, a nil mailer disables email.
func NewDispatcher(store Store, users Directory, emit *realtime.Emitter, mailer Mailer, ttl time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		users:  users,
		emit:   emit,
		mailer: mailer,
		ttl:    ttl,
		log:    log.With().Str("component", "notification_dispatcher").Logger(),
		now:    time.Now,
	}
}

// Dispatch persists the notification for ev and emits it to its rooms. A
// persistence failure returns *DispatchError before anything is emitted.
// Emission failures are logged only. A nil notification with a nil error
// means the event had no audience besides the actor.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (*domain.Notification, error) {
	p, err := d.plan(ctx, ev)
	if err != nil {
		return nil, &DispatchError{Type: ev.Type, Err: err}
	}
	if p == nil {
		return nil, nil
	}

	if err := d.store.Create(ctx, p.note); err != nil {
		return nil, &DispatchError{Type: ev.Type, Err: err}
	}

	payload := toLive(p.note)
	record := recordPayload{
		LivePayload:    payload,
		Order:          ev.Order,
		Task:           ev.Task,
		Response:       ev.Response,
		PreviousStatus: ev.PreviousStatus,
	}

	rooms := p.rooms
	for _, id := range p.extraLive {
		rooms = append(rooms, realtime.UserRoom(id))
	}

	sent := true
	for _, event := range p.events {
		var body any = record
		if event == realtime.EventNewNotification {
			body = payload
		}
		if err := d.emit.Emit(ctx, rooms, event, body, ev.Actor.ID); err != nil {
			sent = false
			d.logEmitFailure(err, p.note, event)
		}
	}

	if sent && len(p.recipients) > 0 {
		if err := d.store.MarkDelivered(ctx, p.note.ID, p.recipients, domain.ChannelWeb); err != nil {
			d.log.Warn().Err(err).Int64("notification_id", p.note.ID).Msg("failed to record web delivery")
		}
	}
	d.sendEmail(ctx, p.note, p.recipients, &payload)
	return p.note, nil
}

func (d *Dispatcher) logEmitFailure(err error, n *domain.Notification, event string) {
	ev := d.log.Warn()
	if errors.Is(err, realtime.ErrNoRouter) {
		ev = d.log.Debug()
	}
	ev.Err(err).Int64("notification_id", n.ID).Str("event", event).Msg("live emission skipped")
}

func (d *Dispatcher) sendEmail(ctx context.Context, n *domain.Notification, recipients []int64, payload *LivePayload) {
	if d.mailer == nil || len(recipients) == 0 {
		return
	}
	body := renderEmail(payload)
	var delivered []int64
	for _, id := range recipients {
		u, err := d.users.GetByID(ctx, id)
		if err != nil || u.Email == "" || !u.IsActive {
			continue
		}
		if err := d.mailer.Send(ctx, u.Email, n.Title, body); err != nil {
			d.log.Warn().Err(err).Int64("notification_id", n.ID).Int64("user_id", id).Msg("email delivery failed")
			continue
		}
		delivered = append(delivered, id)
	}
	if err := d.store.MarkDelivered(ctx, n.ID, delivered, domain.ChannelEmail); err != nil {
		d.log.Warn().Err(err).Int64("notification_id", n.ID).Msg("failed to record email delivery")
	}
}

func (d *Dispatcher) plan(ctx context.Context, ev Event) (*plan, error) {
	switch ev.Type {
	case domain.NotifOrderCreated:
		o, err := needOrder(ev)
		if err != nil {
			return nil, err
		}
		n := d.newNote(ev, fmt.Sprintf("Yeni sipariş: %s", o.OrderNumber),
			fmt.Sprintf("%s yeni bir sipariş oluşturdu: %s", ev.Actor.Name, o.Title), o.Priority)
		n.RelatedOrderID = &o.ID
		return d.global(n, access.OrderCreatedAudience, nil, realtime.EventNewNotification, realtime.EventNewOrder), nil

	case domain.NotifOrderStatusChanged:
		o, err := needOrder(ev)
		if err != nil {
			return nil, err
		}
		n := d.newNote(ev, fmt.Sprintf("Sipariş durumu güncellendi: %s", o.OrderNumber),
			fmt.Sprintf("%s siparişin durumunu %s olarak değiştirdi", ev.Actor.Name, o.Status), o.Priority)
		n.RelatedOrderID = &o.ID
		return d.global(n, access.OrderStatusAudience, []string{realtime.OrderRoom(o.ID)},
			realtime.EventNewNotification, realtime.EventOrderStatusChanged), nil

	case domain.NotifOrderAssigned:
		o, err := needOrder(ev)
		if err != nil {
			return nil, err
		}
		if o.AssignedTo == nil {
			return nil, errors.New("order has no assignee")
		}
		n := d.newNote(ev, fmt.Sprintf("Sipariş atandı: %s", o.OrderNumber),
			fmt.Sprintf("%s size bir sipariş atadı: %s", ev.Actor.Name, o.Title), o.Priority)
		n.RelatedOrderID = &o.ID
		return d.explicit(n, ev.Actor.ID, []int64{*o.AssignedTo}, nil,
			realtime.EventNewNotification, realtime.EventOrderUpdated), nil

	case domain.NotifOrderResponse:
		return d.planResponse(ctx, ev)

	case domain.NotifTaskAssigned:
		t, err := needTask(ev)
		if err != nil {
			return nil, err
		}
		n := d.newNote(ev, "Yeni görev", fmt.Sprintf("%s: %s", ev.Actor.Name, t.Title), t.Priority)
		n.RelatedTaskID = &t.ID
		if t.AssignedTo != nil {
			return d.explicit(n, ev.Actor.ID, []int64{*t.AssignedTo}, nil,
				realtime.EventNewNotification, realtime.EventNewTask), nil
		}
		return d.global(n, access.GeneralTaskAudience, nil, realtime.EventNewNotification, realtime.EventNewTask), nil

	case domain.NotifTaskCompleted:
		t, err := needTask(ev)
		if err != nil {
			return nil, err
		}
		n := d.newNote(ev, "Görev tamamlandı", fmt.Sprintf("%s görevi tamamladı: %s", ev.Actor.Name, t.Title), t.Priority)
		n.RelatedTaskID = &t.ID
		return d.global(n, access.TaskCompletedAudience, []string{realtime.TaskRoom(t.ID)},
			realtime.EventNewNotification, realtime.EventTaskCompleted), nil

	case domain.NotifBroadcast:
		roles := validRoles(ev.Roles)
		if len(roles) == 0 {
			return nil, errors.New("broadcast without roles")
		}
		n := d.newNote(ev, ev.Title, ev.Message, priorityOr(ev.Priority, domain.PriorityMedium))
		return d.global(n, roles, nil, realtime.EventBroadcastNotification), nil

	case domain.NotifEmergency:
		n := d.newNote(ev, ev.Title, ev.Message, domain.PriorityUrgent)
		p := d.global(n, domain.AllRoles(), nil, realtime.EventEmergency)
		p.rooms = []string{realtime.RoomAll}
		return p, nil
	}
	return nil, fmt.Errorf("unknown notification type %q", ev.Type)
}

// planResponse notifies the creator and the assignee, never the responder.
// A response from an admin also reaches every active factory worker live.
func (d *Dispatcher) planResponse(ctx context.Context, ev Event) (*plan, error) {
	o, err := needOrder(ev)
	if err != nil {
		return nil, err
	}
	if ev.Response == nil {
		return nil, errors.New("response event without response")
	}
	n := d.newNote(ev, fmt.Sprintf("Siparişe yanıt: %s", o.OrderNumber),
		fmt.Sprintf("%s yanıt verdi: %s", ev.Actor.Name, ev.Response.Status), o.Priority)
	n.RelatedOrderID = &o.ID

	targets := []int64{o.CreatedBy}
	if o.AssignedTo != nil {
		targets = append(targets, *o.AssignedTo)
	}

	var extra []int64
	if ev.Actor.Role == domain.RoleAdmin {
		for _, role := range access.FactoryRoles {
			ids, err := d.users.ActiveIDsByRole(ctx, role)
			if err != nil {
				d.log.Warn().Err(err).Str("role", string(role)).Msg("failed to resolve factory audience")
				continue
			}
			extra = append(extra, ids...)
		}
	}
	return d.explicit(n, ev.Actor.ID, targets, extra, realtime.EventNewNotification, realtime.EventOrderUpdated), nil
}

func (d *Dispatcher) newNote(ev Event, title, message string, priority domain.Priority) *domain.Notification {
	now := d.now()
	n := &domain.Notification{
		Title:     title,
		Message:   message,
		Type:      ev.Type,
		Priority:  priority,
		CreatedAt: now,
	}
	if ev.Actor.ID > 0 {
		sender := ev.Actor.ID
		n.SenderID = &sender
	}
	if d.ttl > 0 {
		exp := now.Add(d.ttl)
		n.ExpiresAt = &exp
	}
	return n
}

func (d *Dispatcher) global(n *domain.Notification, roles []domain.UserRole, extraRooms []string, events ...string) *plan {
	n.IsGlobal = true
	rooms := make([]string, 0, len(roles)+len(extraRooms))
	for _, role := range roles {
		n.TargetRoles = append(n.TargetRoles, domain.NotificationRole{Role: role})
		rooms = append(rooms, realtime.RoleRoom(role))
	}
	return &plan{note: n, rooms: append(rooms, extraRooms...), events: events}
}

// explicit persists targets minus the actor. extra users get the live
// events only. A plan with nobody left is nil.
func (d *Dispatcher) explicit(n *domain.Notification, actorID int64, targets, extra []int64, events ...string) *plan {
	seen := map[int64]bool{actorID: true}
	var recipients []int64
	for _, id := range targets {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}
	var live []int64
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			live = append(live, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	rooms := make([]string, 0, len(recipients))
	for _, id := range recipients {
		n.Recipients = append(n.Recipients, domain.NotificationRecipient{UserID: id})
		rooms = append(rooms, realtime.UserRoom(id))
	}
	return &plan{note: n, recipients: recipients, extraLive: live, rooms: rooms, events: events}
}

// Emergency sends an alert to every connected user except the sender.
func (d *Dispatcher) Emergency(ctx context.Context, sender domain.Actor, title, message string) error {
	_, err := d.Dispatch(ctx, Event{
		Type:    domain.NotifEmergency,
		Actor:   sender,
		Title:   title,
		Message: message,
	})
	return err
}

func toLive(n *domain.Notification) LivePayload {
	p := LivePayload{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		Timestamp: n.CreatedAt,
	}
	switch {
	case n.RelatedOrderID != nil:
		p.RelatedID = n.RelatedOrderID
	case n.RelatedTaskID != nil:
		p.RelatedID = n.RelatedTaskID
	}
	return p
}

func needOrder(ev Event) (*domain.Order, error) {
	if ev.Order == nil {
		return nil, fmt.Errorf("%s event without order", ev.Type)
	}
	return ev.Order, nil
}

func needTask(ev Event) (*domain.Task, error) {
	if ev.Task == nil {
		return nil, fmt.Errorf("%s event without task", ev.Type)
	}
	return ev.Task, nil
}

func validRoles(roles []domain.UserRole) []domain.UserRole {
	seen := make(map[domain.UserRole]bool, len(roles))
	var out []domain.UserRole
	for _, r := range roles {
		if r.Valid() && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func priorityOr(p, def domain.Priority) domain.Priority {
	if p.Valid() {
		return p
	}
	return def
}
