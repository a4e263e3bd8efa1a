package realtime

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the in-memory room registry of one node. Every membership change
// runs under mu, so concurrent connect, disconnect, join and leave are safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	users   map[int64]int
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		users:   make(map[int64]int),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// register adds c and reports whether it is the user's first connection.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.users[c.userID]++
	return h.users[c.userID] == 1
}

// unregister removes c from every room and closes its send channel. It
// reports whether the user has no connections left.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	for room := range c.rooms {
		h.removeMember(room, c.id)
	}
	delete(h.clients, c.id)
	close(c.send)

	h.users[c.userID]--
	if h.users[c.userID] <= 0 {
		delete(h.users, c.userID)
		return true
	}
	return false
}

func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[connID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.removeMember(room, connID)
	delete(c.rooms, room)
}

func (h *Hub) removeMember(room, connID string) {
	members := h.rooms[room]
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Emit delivers env to local connections. It never blocks on a slow client.
func (h *Hub) Emit(_ context.Context, env Envelope) error {
	frame, err := encodeFrame(env.Event, env.Data)
	if err != nil {
		return err
	}
	h.deliver(env, frame)
	return nil
}

func (h *Hub) deliver(env Envelope, frame []byte) int {
	except := make(map[int64]struct{}, len(env.ExceptUsers))
	for _, id := range env.ExceptUsers {
		except[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	delivered := 0
	for _, room := range env.TargetRooms() {
		for id, c := range h.rooms[room] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := except[c.userID]; ok {
				continue
			}
			select {
			case c.send <- frame:
				delivered++
			default:
				h.log.Warn().Str("conn_id", id).Int64("user_id", c.userID).Str("event", env.Event).Msg("client too slow, frame dropped")
			}
		}
	}
	return delivered
}

// Members lists the connection ids in room.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// InRoom reports whether the connection is a member of room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// OnlineUsers lists users with at least one connection on this node.
func (h *Hub) OnlineUsers() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]int64, 0, len(h.users))
	for id := range h.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] > 0
}
