package realtime

import (
	"strconv"
	"strings"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
)

const (
	RoomAll        = "all"
	RoomManagement = "management"
	RoomFactory    = "factory"

	userRoomPrefix  = "user_"
	roleRoomPrefix  = "role_"
	orderRoomPrefix = "order_"
	taskRoomPrefix  = "task_"
)

func UserRoom(id int64) string { return userRoomPrefix + strconv.FormatInt(id, 10) }

func RoleRoom(role domain.UserRole) string { return roleRoomPrefix + string(role) }

func OrderRoom(id int64) string { return orderRoomPrefix + strconv.FormatInt(id, 10) }

func TaskRoom(id int64) string { return taskRoomPrefix + strconv.FormatInt(id, 10) }

// AutoRooms are joined on connect: the user's own room, the role room,
// the site room for the role, and "all".
func AutoRooms(userID int64, role domain.UserRole) []string {
	rooms := []string{UserRoom(userID), RoleRoom(role)}
	if access.IsManagement(role) {
		rooms = append(rooms, RoomManagement)
	}
	if access.IsFactory(role) {
		rooms = append(rooms, RoomFactory)
	}
	return append(rooms, RoomAll)
}

type recordRoom int

const (
	noRecordRoom recordRoom = iota
	orderRecordRoom
	taskRecordRoom
)

// parseRecordRoom recognises order_<id> and task_<id>, the only rooms a
// client may join or leave by name.
func parseRecordRoom(room string) (recordRoom, int64) {
	var kind recordRoom
	var rest string
	switch {
	case strings.HasPrefix(room, orderRoomPrefix):
		kind, rest = orderRecordRoom, strings.TrimPrefix(room, orderRoomPrefix)
	case strings.HasPrefix(room, taskRoomPrefix):
		kind, rest = taskRecordRoom, strings.TrimPrefix(room, taskRoomPrefix)
	default:
		return noRecordRoom, 0
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return noRecordRoom, 0
	}
	return kind, id
}
