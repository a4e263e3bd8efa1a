package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/apperr"
	"ordertrack/internal/pkg/response"
	"ordertrack/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type identityVerifier interface {
	Verify(ctx context.Context, credential string) (*auth.Identity, error)
}

type OrderLookup interface {
	GetByID(ctx context.Context, id int64, details bool) (*domain.Order, error)
}

type TaskLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Task, error)
}

// NotificationMarker marks one notification read for the viewer.
type NotificationMarker interface {
	MarkRead(ctx context.Context, viewer access.Viewer, notificationID int64) (time.Time, error)
}

// EmergencySender persists and broadcasts an emergency alert.
type EmergencySender interface {
	Emergency(ctx context.Context, sender domain.Actor, title, message string) error
}

type PresenceStore interface {
	SetPresence(ctx context.Context, id int64, online bool, at time.Time) error
}

type Deps struct {
	Verifier      identityVerifier
	Orders        OrderLookup
	Tasks         TaskLookup
	Notifications NotificationMarker
	Emergency     EmergencySender
	Presence      PresenceStore
	CheckOrigin   func(r *http.Request) bool
}

// Handler serves GET /ws. The credential is verified before the upgrade;
// a rejected handshake gets a 401 JSON error and joins nothing.
type Handler struct {
	hub      *Hub
	router   Router
	emitter  *Emitter
	deps     Deps
	upgrader websocket.Upgrader
	log      zerolog.Logger
	now      func() time.Time
}

func NewHandler(hub *Hub, router Router, deps Deps, log zerolog.Logger) *Handler {
	checkOrigin := deps.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub:     hub,
		router:  router,
		emitter: NewEmitter(router),
		deps:    deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log.With().Str("component", "ws").Logger(),
		now: time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Serve)
}

func (h *Handler) Serve(c *gin.Context) {
	identity, err := h.deps.Verifier.Verify(c.Request.Context(), auth.HandshakeCredential(c.Request))
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			response.Error(c, http.StatusUnauthorized, appErr.Code, appErr.Message)
			return
		}
		response.FromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", identity.UserID).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, identity)
	h.connect(client)
	go client.writePump()
	client.readPump(h.handle)
	h.disconnect(client)
}

// connect registers the client, joins its automatic rooms and announces
// the user when this is their first connection.
func (h *Handler) connect(c *Client) {
	first := h.hub.register(c)
	for _, room := range AutoRooms(c.userID, c.identity.Role) {
		h.router.Join(c.id, room)
	}
	h.log.Debug().Str("conn_id", c.id).Int64("user_id", c.userID).Msg("connected")
	if counter, ok := h.router.(PresenceCounter); ok {
		first = h.countPresence(c.userID, first, counter.Connected)
	}
	if first {
		h.announcePresence(c.identity, true)
	}
}

func (h *Handler) disconnect(c *Client) {
	last := h.hub.unregister(c)
	h.log.Debug().Str("conn_id", c.id).Int64("user_id", c.userID).Msg("disconnected")
	if counter, ok := h.router.(PresenceCounter); ok {
		last = h.countPresence(c.userID, last, counter.Disconnected)
	}
	if last {
		h.announcePresence(c.identity, false)
	}
}

// countPresence asks the cluster-wide counter for the edge; when it is
// unreachable the node-local answer stands.
func (h *Handler) countPresence(userID int64, local bool, count func(context.Context, int64) (bool, error)) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	edge, err := count(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("presence count failed, using node-local state")
		return local
	}
	return edge
}

func (h *Handler) announcePresence(id *auth.Identity, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := h.now()
	if h.deps.Presence != nil {
		if err := h.deps.Presence.SetPresence(ctx, id.UserID, online, now); err != nil {
			h.log.Warn().Err(err).Int64("user_id", id.UserID).Msg("failed to store presence")
		}
	}

	event := EventUserOffline
	if online {
		event = EventUserOnline
	}
	payload := PresencePayload{UserID: id.UserID, UserName: id.DisplayName, Role: string(id.Role), Timestamp: now}
	if err := h.emitter.EmitToAll(ctx, event, payload, id.UserID); err != nil {
		h.log.Warn().Err(err).Str("event", event).Msg("presence emit failed")
	}
}

func (h *Handler) handle(c *Client, msg Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Event {
	case InPing:
		c.push(EventPong, PongPayload{Timestamp: h.now()})
	case InMarkNotification:
		h.markNotificationRead(ctx, c, msg.Data)
	case InOrderStatusUpdated:
		h.relayOrderStatus(ctx, c, msg.Data)
	case InTaskStatusUpdated:
		h.relayTaskStatus(ctx, c, msg.Data)
	case InTypingStart:
		h.relayTyping(ctx, c, msg.Data, EventUserTyping)
	case InTypingStop:
		h.relayTyping(ctx, c, msg.Data, EventUserStoppedTyping)
	case InJoinOrder, InJoinTask, InJoinRoom:
		h.joinRecordRoom(ctx, c, msg.Event, msg.Data)
	case InLeaveOrder, InLeaveTask, InLeaveRoom:
		h.leaveRecordRoom(c, msg.Event, msg.Data)
	case InEmergencyAlert:
		h.emergency(ctx, c, msg.Data)
	default:
		c.pushError("UNKNOWN_EVENT", "Unknown event: "+msg.Event)
	}
}

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (h *Handler) markNotificationRead(ctx context.Context, c *Client, raw json.RawMessage) {
	var ref notificationRef
	if !decode(raw, &ref) || ref.NotificationID <= 0 {
		c.pushError("INVALID_PAYLOAD", "notificationId is required")
		return
	}
	readAt, err := h.deps.Notifications.MarkRead(ctx, c.identity.Viewer(), ref.NotificationID)
	if err != nil {
		h.pushFailure(c, err)
		return
	}
	// Every open session of the user updates its badge.
	payload := NotificationReadPayload{NotificationID: ref.NotificationID, ReadAt: readAt}
	if err := h.emitter.EmitToUser(ctx, c.userID, EventNotificationRead, payload); err != nil {
		h.log.Warn().Err(err).Msg("notification-read emit failed")
	}
}

func (h *Handler) relayOrderStatus(ctx context.Context, c *Client, raw json.RawMessage) {
	var upd statusUpdate
	if !decode(raw, &upd) || upd.OrderID <= 0 || !domain.OrderStatus(upd.Status).Valid() {
		c.pushError("INVALID_PAYLOAD", "orderId and a valid status are required")
		return
	}
	order, ok := h.loadOrder(ctx, c, upd.OrderID)
	if !ok {
		return
	}
	if !access.CanWriteOrder(c.identity.Viewer(), order) {
		c.pushError("FORBIDDEN", "You cannot update this order")
		return
	}
	payload := StatusChangedPayload{
		OrderID:       order.ID,
		Status:        upd.Status,
		Note:          upd.Note,
		UpdatedBy:     c.userID,
		UpdatedByName: c.identity.DisplayName,
		Timestamp:     h.now(),
	}
	rooms := []string{OrderRoom(order.ID), RoomManagement}
	if err := h.emitter.Emit(ctx, rooms, EventOrderStatusChanged, payload, c.userID); err != nil {
		h.log.Warn().Err(err).Msg("order-status-changed emit failed")
	}
}

func (h *Handler) relayTaskStatus(ctx context.Context, c *Client, raw json.RawMessage) {
	var upd statusUpdate
	if !decode(raw, &upd) || upd.TaskID <= 0 || !domain.TaskStatus(upd.Status).Valid() {
		c.pushError("INVALID_PAYLOAD", "taskId and a valid status are required")
		return
	}
	task, ok := h.loadTask(ctx, c, upd.TaskID)
	if !ok {
		return
	}
	if !access.CanWriteTask(c.identity.Viewer(), task) {
		c.pushError("FORBIDDEN", "You cannot update this task")
		return
	}
	payload := StatusChangedPayload{
		TaskID:        task.ID,
		Status:        upd.Status,
		Note:          upd.Note,
		UpdatedBy:     c.userID,
		UpdatedByName: c.identity.DisplayName,
		Timestamp:     h.now(),
	}
	rooms := []string{TaskRoom(task.ID), RoomManagement}
	if err := h.emitter.Emit(ctx, rooms, EventTaskStatusChanged, payload, c.userID); err != nil {
		h.log.Warn().Err(err).Msg("task-status-changed emit failed")
	}
}

// relayTyping forwards typing state to a record room the sender has joined.
func (h *Handler) relayTyping(ctx context.Context, c *Client, raw json.RawMessage, event string) {
	var ref recordRef
	if !decode(raw, &ref) {
		c.pushError("INVALID_PAYLOAD", "room, orderId or taskId is required")
		return
	}
	room := ref.room()
	if room == "" || !h.hub.InRoom(c.id, room) {
		c.pushError("NOT_IN_ROOM", "Join the room before sending typing events")
		return
	}
	payload := TypingPayload{UserID: c.userID, UserName: c.identity.DisplayName, Room: room}
	if err := h.emitter.Emit(ctx, []string{room}, event, payload, c.userID); err != nil {
		h.log.Warn().Err(err).Str("event", event).Msg("typing emit failed")
	}
}

func (r recordRef) room() string {
	switch {
	case r.Room != "":
		if kind, _ := parseRecordRoom(r.Room); kind == noRecordRoom {
			return ""
		}
		return r.Room
	case r.OrderID > 0:
		return OrderRoom(r.OrderID)
	case r.TaskID > 0:
		return TaskRoom(r.TaskID)
	}
	return ""
}

// recordRoomFor resolves the target room of a join or leave event. The
// order and task events take an id; joinRoom and leaveRoom take a room
// name limited to order_ and task_ rooms.
func recordRoomFor(event string, raw json.RawMessage) (recordRoom, int64) {
	var ref recordRef
	if !decode(raw, &ref) {
		// Bare values: a room name or a record id.
		var name string
		var id int64
		switch {
		case json.Unmarshal(raw, &name) == nil:
			ref.Room = name
		case json.Unmarshal(raw, &id) == nil:
			ref.OrderID, ref.TaskID = id, id
		default:
			return noRecordRoom, 0
		}
	}
	switch event {
	case InJoinOrder, InLeaveOrder:
		if ref.OrderID > 0 {
			return orderRecordRoom, ref.OrderID
		}
	case InJoinTask, InLeaveTask:
		if ref.TaskID > 0 {
			return taskRecordRoom, ref.TaskID
		}
	case InJoinRoom, InLeaveRoom:
		return parseRecordRoom(ref.Room)
	}
	return noRecordRoom, 0
}

func (h *Handler) joinRecordRoom(ctx context.Context, c *Client, event string, raw json.RawMessage) {
	kind, id := recordRoomFor(event, raw)
	viewer := c.identity.Viewer()
	var room string
	switch kind {
	case orderRecordRoom:
		order, ok := h.loadOrder(ctx, c, id)
		if !ok {
			return
		}
		if !access.CanReadOrder(viewer, order) {
			c.pushError("FORBIDDEN", "You cannot view this order")
			return
		}
		room = OrderRoom(id)
	case taskRecordRoom:
		task, ok := h.loadTask(ctx, c, id)
		if !ok {
			return
		}
		if !access.CanReadTask(viewer, task) {
			c.pushError("FORBIDDEN", "You cannot view this task")
			return
		}
		room = TaskRoom(id)
	default:
		c.pushError("ROOM_NOT_ALLOWED", "Only order and task rooms can be joined")
		return
	}
	h.router.Join(c.id, room)
}

func (h *Handler) leaveRecordRoom(c *Client, event string, raw json.RawMessage) {
	kind, id := recordRoomFor(event, raw)
	switch kind {
	case orderRecordRoom:
		h.router.Leave(c.id, OrderRoom(id))
	case taskRecordRoom:
		h.router.Leave(c.id, TaskRoom(id))
	default:
		c.pushError("ROOM_NOT_ALLOWED", "Only order and task rooms can be left")
	}
}

func (h *Handler) emergency(ctx context.Context, c *Client, raw json.RawMessage) {
	if !access.CanSendEmergency(c.identity.Viewer()) {
		c.pushError("FORBIDDEN", "Only administrators can send emergency alerts")
		return
	}
	var alert emergencyAlert
	if !decode(raw, &alert) || alert.Message == "" {
		c.pushError("INVALID_PAYLOAD", "message is required")
		return
	}
	if alert.Title == "" {
		alert.Title = "Acil durum"
	}
	if err := h.deps.Emergency.Emergency(ctx, c.identity.Actor(), alert.Title, alert.Message); err != nil {
		h.pushFailure(c, err)
	}
}

func (h *Handler) loadOrder(ctx context.Context, c *Client, id int64) (*domain.Order, bool) {
	order, err := h.deps.Orders.GetByID(ctx, id, false)
	if err != nil {
		h.pushFailure(c, err)
		return nil, false
	}
	return order, true
}

func (h *Handler) loadTask(ctx context.Context, c *Client, id int64) (*domain.Task, bool) {
	task, err := h.deps.Tasks.GetByID(ctx, id)
	if err != nil {
		h.pushFailure(c, err)
		return nil, false
	}
	return task, true
}

// pushFailure reports err to the client without leaking internal detail.
func (h *Handler) pushFailure(c *Client, err error) {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		c.pushError(appErr.Code, appErr.Message)
	case errors.Is(err, repository.ErrNotFound):
		c.pushError("NOT_FOUND", "Record not found")
	default:
		h.log.Error().Err(err).Str("conn_id", c.id).Msg("socket request failed")
		c.pushError("INTERNAL_ERROR", "Internal server error")
	}
}
