package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/pkg/apperr"
	"ordertrack/internal/repository"

	"github.com/rs/zerolog"
)

// numberAttempts bounds retries when two creators race for the same
// sequence number.
const numberAttempts = 5

type Service struct {
	orders   OrderRepository
	users    UserLookup
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(orders OrderRepository, users UserLookup, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		orders:   orders,
		users:    users,
		notifier: notifier,
		log:      log.With().Str("component", "order").Logger(),
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, id *auth.Identity, req CreateOrderRequest) (*domain.Order, error) {
	if !access.CanCreateOrder(id.Viewer()) {
		return nil, ErrCreateForbidden
	}
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.checkAssignee(ctx, *req.AssignedTo); err != nil {
			return nil, err
		}
	}

	now := s.now()
	o := &domain.Order{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		CustomerName: req.CustomerName,
		CreatedBy:    id.UserID,
		AssignedTo:   req.AssignedTo,
		Location:     req.Location,
		Status:       domain.OrderCreated,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, domain.OrderItem{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit})
	}

	if err := s.insertNumbered(ctx, o, now, id); err != nil {
		return nil, err
	}

	s.notify(ctx, notification.Event{Type: domain.NotifOrderCreated, Actor: id.Actor(), Order: o})
	if o.AssignedTo != nil {
		s.notify(ctx, notification.Event{Type: domain.NotifOrderAssigned, Actor: id.Actor(), Order: o})
	}
	return o, nil
}

// insertNumbered assigns SIP-YYYYMMDD-NNN, one past the highest sequence of
// the day, and retries when a concurrent insert took the number.
func (s *Service) insertNumbered(ctx context.Context, o *domain.Order, now time.Time, id *auth.Identity) error {
	prefix := domain.OrderNumberPrefix(now)
	for attempt := 0; attempt < numberAttempts; attempt++ {
		last, err := s.orders.LastNumberWithPrefix(ctx, prefix)
		if err != nil {
			return err
		}
		o.ID = 0
		o.OrderNumber = domain.FormatOrderNumber(now, domain.OrderSequence(last)+1)
		o.Timeline = []domain.TimelineEntry{{
			Kind:      domain.TimelineCreated,
			ActorID:   id.UserID,
			ActorName: id.DisplayName,
			Status:    string(domain.OrderCreated),
		}}
		for i := range o.Items {
			o.Items[i].ID = 0
		}

		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		s.log.Debug().Str("order_number", o.OrderNumber).Msg("order number taken, retrying")
	}
	return ErrNumberExhausted
}

// Get returns the order with its items, timeline, responses and notes.
func (s *Service) Get(ctx context.Context, id *auth.Identity, orderID int64) (*domain.Order, error) {
	o, err := s.load(ctx, orderID, true)
	if err != nil {
		return nil, err
	}
	if !access.CanReadOrder(id.Viewer(), o) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, id *auth.Identity, q ListQuery) (*ListResponse, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return nil, apperr.InvalidField("priority", "unknown priority")
	}
	filter := repository.OrderFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Page:     repository.Page{Page: q.Page, Limit: q.Limit},
	}
	orders, total, err := s.orders.List(ctx, access.OrderScope(id.Viewer()).Build(), filter)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Orders: orders, Total: total, Page: max(q.Page, 1), Limit: effectiveLimit(q.Limit)}, nil
}

func (s *Service) Stats(ctx context.Context, id *auth.Identity) (*Stats, error) {
	counts, err := s.orders.StatusCounts(ctx, access.OrderScope(id.Viewer()).Build())
	if err != nil {
		return nil, err
	}
	stats := &Stats{ByStatus: make(map[domain.OrderStatus]int64, len(counts))}
	for _, st := range domain.OrderStatuses() {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id *auth.Identity, orderID int64, req UpdateStatusRequest) (*domain.Order, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.load(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if !access.CanWriteOrder(id.Viewer(), o) {
		return nil, ErrForbidden
	}
	if o.Status.Terminal() {
		return nil, ErrOrderClosed
	}
	if o.Status == req.Status {
		return s.load(ctx, orderID, true)
	}

	previous := o.Status
	entry := &domain.TimelineEntry{
		Kind:      domain.TimelineStatusChange,
		ActorID:   id.UserID,
		ActorName: id.DisplayName,
		Status:    string(req.Status),
		Note:      req.Note,
	}
	if err := s.orders.UpdateStatus(ctx, orderID, req.Status, entry); err != nil {
		return nil, s.mapErr(err)
	}
	o.Status = req.Status

	s.notify(ctx, notification.Event{
		Type:           domain.NotifOrderStatusChanged,
		Actor:          id.Actor(),
		Order:          o,
		PreviousStatus: string(previous),
	})
	return s.load(ctx, orderID, true)
}

func (s *Service) Assign(ctx context.Context, id *auth.Identity, orderID int64, req AssignRequest) (*domain.Order, error) {
	o, err := s.load(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if !access.CanAssignOrder(id.Viewer(), o) {
		return nil, ErrForbidden
	}
	if o.Status.Terminal() {
		return nil, ErrOrderClosed
	}
	if err := s.checkAssignee(ctx, req.AssigneeID); err != nil {
		return nil, err
	}

	entry := &domain.TimelineEntry{
		Kind:      domain.TimelineAssigned,
		ActorID:   id.UserID,
		ActorName: id.DisplayName,
	}
	if err := s.orders.Assign(ctx, orderID, req.AssigneeID, entry); err != nil {
		return nil, s.mapErr(err)
	}
	assignee := req.AssigneeID
	o.AssignedTo = &assignee

	s.notify(ctx, notification.Event{Type: domain.NotifOrderAssigned, Actor: id.Actor(), Order: o})
	return s.load(ctx, orderID, true)
}

// Respond appends a response. Earlier responses are never modified.
func (s *Service) Respond(ctx context.Context, id *auth.Identity, orderID int64, req RespondRequest) (*domain.Order, error) {
	if !req.Status.Valid() {
		return nil, apperr.InvalidField("status", "unknown response status")
	}
	o, err := s.load(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if !access.CanReadOrder(id.Viewer(), o) {
		return nil, ErrForbidden
	}

	resp := &domain.OrderResponse{
		OrderID:   orderID,
		Status:    req.Status,
		Note:      req.Note,
		Voice:     req.Voice,
		ActorID:   id.UserID,
		ActorName: id.DisplayName,
	}
	entry := &domain.TimelineEntry{
		Kind:      domain.TimelineResponse,
		ActorID:   id.UserID,
		ActorName: id.DisplayName,
		Status:    string(req.Status),
		Note:      req.Note,
	}
	if err := s.orders.AppendResponse(ctx, resp, entry); err != nil {
		return nil, s.mapErr(err)
	}

	s.notify(ctx, notification.Event{Type: domain.NotifOrderResponse, Actor: id.Actor(), Order: o, Response: resp})
	return s.load(ctx, orderID, true)
}

func (s *Service) AddNote(ctx context.Context, id *auth.Identity, orderID int64, req NoteRequest) (*domain.Order, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperr.InvalidField("text", "required")
	}
	o, err := s.load(ctx, orderID, false)
	if err != nil {
		return nil, err
	}
	if !access.CanReadOrder(id.Viewer(), o) {
		return nil, ErrForbidden
	}

	note := &domain.OrderNote{OrderID: orderID, Text: text, ActorID: id.UserID, ActorName: id.DisplayName}
	entry := &domain.TimelineEntry{Kind: domain.TimelineNote, ActorID: id.UserID, ActorName: id.DisplayName, Note: text}
	if err := s.orders.AppendNote(ctx, note, entry); err != nil {
		return nil, s.mapErr(err)
	}
	return s.load(ctx, orderID, true)
}

func (s *Service) Delete(ctx context.Context, id *auth.Identity, orderID int64) error {
	o, err := s.load(ctx, orderID, false)
	if err != nil {
		return err
	}
	if !access.CanDeleteOrder(id.Viewer(), o) {
		return ErrForbidden
	}
	return s.mapErr(s.orders.Delete(ctx, orderID))
}

func (s *Service) load(ctx context.Context, orderID int64, details bool) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID, details)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return o, nil
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOrderNotFound
	}
	return err
}

func (s *Service) checkAssignee(ctx context.Context, userID int64) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidAssignee
		}
		return err
	}
	if !u.IsActive {
		return ErrInvalidAssignee
	}
	return nil
}

// notify dispatches ev. A failed dispatch never fails the mutation.
func (s *Service) notify(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Int64("actor_id", ev.Actor.ID).Msg("notification dispatch failed")
	}
}

func validateCreate(req *CreateOrderRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "required"
	}
	if req.Location == "" {
		req.Location = domain.LocationFactory
	} else if !req.Location.Valid() || req.Location == domain.LocationBoth {
		fields["location"] = "must be magaza or fabrika"
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	} else if !req.Priority.Valid() {
		fields["priority"] = "unknown priority"
	}
	for _, it := range req.Items {
		if !it.Quantity.IsPositive() {
			fields["items"] = "quantity must be positive"
			break
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("Invalid request", fields)
	}
	return nil
}

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
