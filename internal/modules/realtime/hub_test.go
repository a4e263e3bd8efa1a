package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/auth"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attach registers a connection without a socket and joins its auto rooms.
func attach(h *Hub, userID int64, role domain.UserRole) *Client {
	c := newClient(nil, &auth.Identity{UserID: userID, Role: role, DisplayName: "user"})
	h.register(c)
	for _, room := range AutoRooms(userID, role) {
		h.Join(c.id, room)
	}
	return c
}

// drain returns the events queued for c.
func drain(t *testing.T, c *Client) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestAutoRooms(t *testing.T) {
	assert.Equal(t, []string{"user_1", "role_admin", "management", "all"}, AutoRooms(1, domain.RoleAdmin))
	assert.Equal(t, []string{"user_2", "role_magaza_personeli", "management", "all"}, AutoRooms(2, domain.RoleStoreStaff))
	assert.Equal(t, []string{"user_3", "role_fabrika_iscisi", "factory", "all"}, AutoRooms(3, domain.RoleFactoryWorker))
}

func TestEnvelope_TargetRoomsExcludeActor(t *testing.T) {
	env := Envelope{
		Rooms:       []string{"user_1", "role_admin", "user_2", "role_admin", "order_9", ""},
		ExceptUsers: []int64{1},
	}
	assert.Equal(t, []string{"role_admin", "user_2", "order_9"}, env.TargetRooms())
}

func TestHub_EmitUnionDeliversOnce(t *testing.T) {
	h := NewHub(zerolog.Nop())
	admin := attach(h, 1, domain.RoleAdmin)
	h.Join(admin.id, OrderRoom(9))

	// admin is in user_1, role_admin, management and order_9.
	env := Envelope{
		Rooms: []string{UserRoom(1), RoleRoom(domain.RoleAdmin), RoomManagement, OrderRoom(9)},
		Event: EventOrderUpdated,
		Data:  map[string]int64{"orderId": 9},
	}
	require.NoError(t, h.Emit(context.Background(), env))

	frames := drain(t, admin)
	require.Len(t, frames, 1)
	assert.Equal(t, EventOrderUpdated, frames[0].Event)
	assert.JSONEq(t, `{"orderId":9}`, string(frames[0].Data))
}

func TestHub_ExceptUsersSkipsEveryConnectionOfActor(t *testing.T) {
	h := NewHub(zerolog.Nop())
	actorTab1 := attach(h, 1, domain.RoleAdmin)
	actorTab2 := attach(h, 1, domain.RoleAdmin)
	other := attach(h, 2, domain.RoleAdmin)

	n := h.deliver(Envelope{Rooms: []string{RoleRoom(domain.RoleAdmin), UserRoom(1)}, ExceptUsers: []int64{1}}, []byte(`{"event":"x"}`))

	assert.Equal(t, 1, n)
	assert.Empty(t, drain(t, actorTab1))
	assert.Empty(t, drain(t, actorTab2))
	assert.Len(t, drain(t, other), 1)
}

func TestHub_JoinLeaveAndUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := attach(h, 5, domain.RoleFactoryWorker)

	h.Join(c.id, TaskRoom(3))
	assert.True(t, h.InRoom(c.id, TaskRoom(3)))
	assert.Equal(t, []string{c.id}, h.Members(RoomFactory))

	h.Leave(c.id, TaskRoom(3))
	assert.False(t, h.InRoom(c.id, TaskRoom(3)))
	assert.Empty(t, h.Members(TaskRoom(3)))

	// Unknown connections are ignored.
	h.Join("missing", RoomAll)
	assert.Equal(t, []string{c.id}, h.Members(RoomAll))

	assert.True(t, h.unregister(c))
	assert.Empty(t, h.Members(RoomAll))
	assert.False(t, h.unregister(c))
}

func TestHub_PresenceCountsConnections(t *testing.T) {
	h := NewHub(zerolog.Nop())
	first := newClient(nil, &auth.Identity{UserID: 4, Role: domain.RoleStoreStaff})
	second := newClient(nil, &auth.Identity{UserID: 4, Role: domain.RoleStoreStaff})

	assert.True(t, h.register(first))
	assert.False(t, h.register(second))
	assert.Equal(t, []int64{4}, h.OnlineUsers())

	assert.False(t, h.unregister(first))
	assert.True(t, h.IsOnline(4))
	assert.True(t, h.unregister(second))
	assert.False(t, h.IsOnline(4))
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(zerolog.Nop())
	slow := attach(h, 1, domain.RoleAdmin)
	fast := attach(h, 2, domain.RoleAdmin)

	for i := 0; i < sendBuffer; i++ {
		slow.send <- []byte(`{}`)
	}
	n := h.deliver(Envelope{Rooms: []string{RoomAll}}, []byte(`{"event":"x"}`))

	assert.Equal(t, 1, n)
	assert.Len(t, drain(t, fast), 1)
}

func TestEmitter_NoRouter(t *testing.T) {
	var e *Emitter
	assert.ErrorIs(t, e.EmitToAll(context.Background(), "x", nil), ErrNoRouter)
	assert.ErrorIs(t, NewEmitter(nil).EmitToUser(context.Background(), 1, "x", nil), ErrNoRouter)
}

func TestEmitter_ActorOnlyTargetIsNoop(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := attach(h, 1, domain.RoleAdmin)

	require.NoError(t, NewEmitter(h).EmitToUser(context.Background(), 1, "x", nil, 1))
	assert.Empty(t, drain(t, c))
}
