package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoRouter is returned when emitting without a configured router.
var ErrNoRouter = errors.New("realtime: no router configured")

// Router routes events to rooms. The in-memory Hub serves a single node;
// RedisRouter fans out across nodes.
type Router interface {
	Join(connID, room string)
	Leave(connID, room string)
	Emit(ctx context.Context, env Envelope) error
}

// PresenceCounter counts a user's open connections across every node.
// Routers that span nodes implement it; a node-local Hub decides presence
// from its own connections.
type PresenceCounter interface {
	Connected(ctx context.Context, userID int64) (first bool, err error)
	Disconnected(ctx context.Context, userID int64) (last bool, err error)
}

// Envelope is one emission. Delivery is the union of the connections in
// Rooms, each connection at most once, minus connections of ExceptUsers.
type Envelope struct {
	Rooms       []string `json:"rooms"`
	Event       string   `json:"event"`
	Data        any      `json:"data"`
	ExceptUsers []int64  `json:"except_users,omitempty"`
}

// TargetRooms returns the deduplicated rooms with the personal room of
// every excluded user removed.
func (e Envelope) TargetRooms() []string {
	drop := make(map[string]struct{}, len(e.ExceptUsers))
	for _, id := range e.ExceptUsers {
		drop[UserRoom(id)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(e.Rooms))
	out := make([]string, 0, len(e.Rooms))
	for _, r := range e.Rooms {
		if r == "" {
			continue
		}
		if _, ok := drop[r]; ok {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Frame is the wire format of every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
