package realtime

import (
	"context"

	"ordertrack/internal/domain"
)

// Emitter offers audience-named helpers over a Router. The trailing except
// list names users whose connections are skipped; their personal rooms are
// dropped from the target set.
type Emitter struct {
	router Router
}

func NewEmitter(router Router) *Emitter {
	return &Emitter{router: router}
}

// Emit sends to the union of rooms.
func (e *Emitter) Emit(ctx context.Context, rooms []string, event string, data any, except ...int64) error {
	if e == nil || e.router == nil {
		return ErrNoRouter
	}
	env := Envelope{Rooms: rooms, Event: event, Data: data, ExceptUsers: except}
	env.Rooms = env.TargetRooms()
	if len(env.Rooms) == 0 {
		return nil
	}
	return e.router.Emit(ctx, env)
}

func (e *Emitter) EmitToUser(ctx context.Context, userID int64, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{UserRoom(userID)}, event, data, except...)
}

func (e *Emitter) EmitToRole(ctx context.Context, role domain.UserRole, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{RoleRoom(role)}, event, data, except...)
}

func (e *Emitter) EmitToManagement(ctx context.Context, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{RoomManagement}, event, data, except...)
}

func (e *Emitter) EmitToFactory(ctx context.Context, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{RoomFactory}, event, data, except...)
}

func (e *Emitter) EmitToOrder(ctx context.Context, orderID int64, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{OrderRoom(orderID)}, event, data, except...)
}

func (e *Emitter) EmitToTask(ctx context.Context, taskID int64, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{TaskRoom(taskID)}, event, data, except...)
}

func (e *Emitter) EmitToAll(ctx context.Context, event string, data any, except ...int64) error {
	return e.Emit(ctx, []string{RoomAll}, event, data, except...)
}
