package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"
	"ordertrack/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMarker struct {
	mu  sync.Mutex
	ids []int64
}

func (f *fakeMarker) MarkRead(_ context.Context, _ access.Viewer, id int64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), nil
}

type fakeEmergency struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeEmergency) Emergency(_ context.Context, sender domain.Actor, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, sender.Name+": "+title+": "+message)
	return nil
}

func (f *fakeEmergency) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type wsFixture struct {
	db        *gorm.DB
	hub       *Hub
	tokens    *jwt.Service
	users     *repository.UserRepository
	orders    *repository.OrderRepository
	emergency *fakeEmergency
	marker    *fakeMarker
	engine    *gin.Engine
	server    *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	orders := repository.NewOrderRepository(db)
	tokens := jwt.New("ws-secret", time.Hour)
	hub := NewHub(zerolog.Nop())
	f := &wsFixture{
		db:        db,
		hub:       hub,
		tokens:    tokens,
		users:     users,
		orders:    orders,
		emergency: &fakeEmergency{},
		marker:    &fakeMarker{},
	}

	h := NewHandler(hub, hub, Deps{
		Verifier:      auth.NewVerifier(tokens, users),
		Orders:        orders,
		Tasks:         repository.NewTaskRepository(db),
		Notifications: f.marker,
		Emergency:     f.emergency,
		Presence:      users,
	}, zerolog.Nop())

	f.engine = gin.New()
	h.RegisterRoutes(f.engine)
	f.server = httptest.NewServer(f.engine)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, u *domain.User) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// A pong proves the server finished registering the connection.
	send(t, conn, InPing, nil)
	expect(t, conn, EventPong)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Event: event, Data: raw}))
}

// expect reads frames until one named event arrives.
func expect(t *testing.T, conn *websocket.Conn, event string) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f Frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestServe_RejectsHandshake(t *testing.T) {
	f := newWSFixture(t)
	worker := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)
	expired, err := jwt.New("ws-secret", -time.Minute).GenerateToken(worker.ID, string(worker.Role))
	require.NoError(t, err)
	require.NoError(t, f.users.SetActive(context.Background(), worker.ID, false))
	inactive, err := f.tokens.GenerateToken(worker.ID, string(worker.Role))
	require.NoError(t, err)

	cases := []struct {
		name, query, code string
	}{
		{"missing", "", "MISSING_CREDENTIAL"},
		{"garbage", "?token=abc", "INVALID_TOKEN"},
		{"expired", "?token=" + expired, "TOKEN_EXPIRED"},
		{"inactive", "?token=" + inactive, "ACCOUNT_INACTIVE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
	assert.Empty(t, f.hub.Members(RoomAll))
}

func TestServe_PresenceAnnouncedToOthers(t *testing.T) {
	f := newWSFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	worker := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)

	adminConn := f.dial(t, admin)
	workerConn := f.dial(t, worker)

	online := expect(t, adminConn, EventUserOnline)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(online.Data, &p))
	assert.Equal(t, worker.ID, p.UserID)
	assert.Equal(t, "Mehmet", p.UserName)

	u, err := f.users.GetByID(context.Background(), worker.ID)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	require.NoError(t, workerConn.Close())
	offline := expect(t, adminConn, EventUserOffline)
	require.NoError(t, json.Unmarshal(offline.Data, &p))
	assert.Equal(t, worker.ID, p.UserID)
	assert.False(t, f.hub.IsOnline(worker.ID))
}

func TestServe_JoinOrderRequiresReadAccess(t *testing.T) {
	f := newWSFixture(t)
	staff := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)
	worker := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)
	ctx := context.Background()

	storeOrder := &domain.Order{OrderNumber: "SIP-20261018-001", Title: "Vitrin", CreatedBy: staff.ID,
		Location: domain.LocationStore, Status: domain.OrderCreated, Priority: domain.PriorityMedium}
	factoryOrder := &domain.Order{OrderNumber: "SIP-20261018-002", Title: "Dolap", CreatedBy: staff.ID,
		Location: domain.LocationFactory, Status: domain.OrderCreated, Priority: domain.PriorityMedium}
	require.NoError(t, f.orders.Create(ctx, storeOrder))
	require.NoError(t, f.orders.Create(ctx, factoryOrder))

	conn := f.dial(t, worker)

	send(t, conn, InJoinOrder, map[string]int64{"orderId": storeOrder.ID})
	errFrame := expect(t, conn, EventError)
	assert.Contains(t, string(errFrame.Data), "FORBIDDEN")

	send(t, conn, InJoinRoom, map[string]string{"room": "management"})
	errFrame = expect(t, conn, EventError)
	assert.Contains(t, string(errFrame.Data), "ROOM_NOT_ALLOWED")

	send(t, conn, InJoinRoom, OrderRoom(factoryOrder.ID))
	send(t, conn, InPing, nil)
	expect(t, conn, EventPong)
	assert.Len(t, f.hub.Members(OrderRoom(factoryOrder.ID)), 1)
	assert.Empty(t, f.hub.Members(OrderRoom(storeOrder.ID)))

	send(t, conn, InLeaveOrder, factoryOrder.ID)
	send(t, conn, InPing, nil)
	expect(t, conn, EventPong)
	assert.Empty(t, f.hub.Members(OrderRoom(factoryOrder.ID)))
}

func TestServe_TypingRelayedToRoomExceptSender(t *testing.T) {
	f := newWSFixture(t)
	staff := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	order := &domain.Order{OrderNumber: "SIP-20261018-001", Title: "Vitrin", CreatedBy: staff.ID,
		Location: domain.LocationStore, Status: domain.OrderCreated, Priority: domain.PriorityMedium}
	require.NoError(t, f.orders.Create(context.Background(), order))

	staffConn := f.dial(t, staff)
	adminConn := f.dial(t, admin)
	for _, c := range []*websocket.Conn{staffConn, adminConn} {
		send(t, c, InJoinOrder, map[string]int64{"orderId": order.ID})
	}
	send(t, staffConn, InPing, nil)
	expect(t, staffConn, EventPong)
	send(t, adminConn, InPing, nil)
	expect(t, adminConn, EventPong)

	send(t, staffConn, InTypingStart, map[string]int64{"orderId": order.ID})
	typing := expect(t, adminConn, EventUserTyping)
	var p TypingPayload
	require.NoError(t, json.Unmarshal(typing.Data, &p))
	assert.Equal(t, staff.ID, p.UserID)
	assert.Equal(t, OrderRoom(order.ID), p.Room)

	// The sender only sees its own pong, never its typing echo.
	send(t, staffConn, InPing, nil)
	require.NoError(t, staffConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var next Frame
	require.NoError(t, staffConn.ReadJSON(&next))
	assert.Equal(t, EventPong, next.Event)
}

func TestServe_EmergencyIsAdminOnly(t *testing.T) {
	f := newWSFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	worker := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)

	workerConn := f.dial(t, worker)
	send(t, workerConn, InEmergencyAlert, map[string]string{"message": "Yangın"})
	errFrame := expect(t, workerConn, EventError)
	assert.Contains(t, string(errFrame.Data), "FORBIDDEN")
	assert.Zero(t, f.emergency.count())

	adminConn := f.dial(t, admin)
	send(t, adminConn, InEmergencyAlert, map[string]string{"title": "Tahliye", "message": "Yangın"})
	send(t, adminConn, InPing, nil)
	expect(t, adminConn, EventPong)
	require.Equal(t, 1, f.emergency.count())
	assert.Equal(t, "Admin: Tahliye: Yangın", f.emergency.alerts[0])
}

func TestServe_MarkNotificationReadEchoesToOwnSessions(t *testing.T) {
	f := newWSFixture(t)
	staff := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)

	tab1 := f.dial(t, staff)
	tab2 := f.dial(t, staff)

	send(t, tab1, InMarkNotification, map[string]int64{"notificationId": 42})
	read := expect(t, tab2, EventNotificationRead)
	assert.JSONEq(t, `{"notificationId":42,"readAt":"2026-10-18T12:00:00Z"}`, string(read.Data))

	send(t, tab1, InMarkNotification, map[string]string{})
	errFrame := expect(t, tab1, EventError)
	assert.Contains(t, string(errFrame.Data), "INVALID_PAYLOAD")
}
