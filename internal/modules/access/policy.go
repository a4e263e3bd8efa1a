// Package access holds every role, ownership and location rule. Handlers,
// services and the socket layer call the named policies here instead of
// comparing roles inline.
package access

import (
	"time"

	"ordertrack/internal/domain"
)

// Viewer is the identity a decision is made for.
type Viewer struct {
	ID        int64
	Role      domain.UserRole
	CreatedAt time.Time
}

func (v Viewer) IsAdmin() bool { return v.Role == domain.RoleAdmin }

// RoleSet is a named capability set.
type RoleSet []domain.UserRole

func (s RoleSet) Has(role domain.UserRole) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

var (
	// ManagementRoles share the "management" room and manage orders.
	ManagementRoles = RoleSet{domain.RoleAdmin, domain.RoleStoreStaff}

	// FactoryRoles share the "factory" room.
	FactoryRoles = RoleSet{domain.RoleFactoryWorker}

	OrderCreators    = ManagementRoles
	TaskCreators     = ManagementRoles
	UserAdmins       = RoleSet{domain.RoleAdmin}
	EmergencySenders = RoleSet{domain.RoleAdmin}
	BroadcastSenders = RoleSet{domain.RoleAdmin}

	// Audiences of role-scoped (global) notifications.
	OrderCreatedAudience  = RoleSet{domain.RoleAdmin, domain.RoleFactoryWorker}
	OrderStatusAudience   = RoleSet{domain.RoleAdmin, domain.RoleStoreStaff, domain.RoleFactoryWorker}
	GeneralTaskAudience   = RoleSet{domain.RoleFactoryWorker}
	TaskCompletedAudience = RoleSet{domain.RoleAdmin, domain.RoleStoreStaff}
)

const (
	colCreatedBy  = "created_by"
	colAssignedTo = "assigned_to"
	colLocation   = "location"
	colIsGlobal   = "is_global"
	colCreatedAt  = "created_at"

	tableNotifications = "notifications"
	tableRecipients    = "notification_recipients"
	tableTargetRoles   = "notification_target_roles"
)

// OrderScope is the order read policy.
//
//	admin          all orders
//	factory worker assigned to me, or unassigned and located at the factory
//	store staff    created by me, assigned to me, or located at the store
func OrderScope(v Viewer) Cond {
	switch v.Role {
	case domain.RoleAdmin:
		return All()
	case domain.RoleFactoryWorker:
		return Or(
			Eq(colAssignedTo, v.ID),
			And(IsNull(colAssignedTo), Eq(colLocation, domain.LocationFactory)),
		)
	case domain.RoleStoreStaff:
		return Or(
			Eq(colCreatedBy, v.ID),
			Eq(colAssignedTo, v.ID),
			Eq(colLocation, domain.LocationStore),
		)
	default:
		return None()
	}
}

// TaskScope mirrors OrderScope and also admits tasks located at both sites.
func TaskScope(v Viewer) Cond {
	switch v.Role {
	case domain.RoleAdmin:
		return All()
	case domain.RoleFactoryWorker:
		return Or(
			Eq(colAssignedTo, v.ID),
			And(IsNull(colAssignedTo), In(colLocation, domain.LocationFactory, domain.LocationBoth)),
		)
	case domain.RoleStoreStaff:
		return Or(
			Eq(colCreatedBy, v.ID),
			Eq(colAssignedTo, v.ID),
			In(colLocation, domain.LocationStore, domain.LocationBoth),
		)
	default:
		return None()
	}
}

// NotificationScope: an explicit recipient row for the viewer, or a global
// notification targeting the viewer's current role that was created no
// earlier than the viewer's account.
func NotificationScope(v Viewer) Cond {
	return Or(
		Related(tableNotifications, tableRecipients, "notification_id", "user_id", v.ID),
		And(
			Eq(colIsGlobal, true),
			Related(tableNotifications, tableTargetRoles, "notification_id", "role", v.Role),
			NotBefore(colCreatedAt, v.CreatedAt),
		),
	)
}

func CanReadOrder(v Viewer, o *domain.Order) bool {
	return OrderScope(v).Eval(OrderRow(o))
}

// CanWriteOrder: admin, the creator or the current assignee.
func CanWriteOrder(v Viewer, o *domain.Order) bool {
	return v.IsAdmin() || o.CreatedBy == v.ID || o.IsAssignedTo(v.ID)
}

// CanDeleteOrder: admin or the creator. The assignee cannot delete.
func CanDeleteOrder(v Viewer, o *domain.Order) bool {
	return v.IsAdmin() || o.CreatedBy == v.ID
}

// CanAssignOrder: admin or the creator.
func CanAssignOrder(v Viewer, o *domain.Order) bool {
	return v.IsAdmin() || o.CreatedBy == v.ID
}

func CanCreateOrder(v Viewer) bool { return OrderCreators.Has(v.Role) }

func CanReadTask(v Viewer, t *domain.Task) bool {
	return TaskScope(v).Eval(TaskRow(t))
}

// CanWriteTask: admin, the creator or the assignee.
func CanWriteTask(v Viewer, t *domain.Task) bool {
	return v.IsAdmin() || t.CreatedBy == v.ID || t.IsAssignedTo(v.ID)
}

// CanProgressTask covers steps, start and complete: admin or the assignee.
func CanProgressTask(v Viewer, t *domain.Task) bool {
	return v.IsAdmin() || t.IsAssignedTo(v.ID)
}

func CanDeleteTask(v Viewer, t *domain.Task) bool {
	return v.IsAdmin() || t.CreatedBy == v.ID
}

func CanCreateTask(v Viewer) bool { return TaskCreators.Has(v.Role) }

func CanViewNotification(v Viewer, n *domain.Notification) bool {
	return NotificationScope(v).Eval(NotificationRow(n))
}

func CanManageUsers(v Viewer) bool { return UserAdmins.Has(v.Role) }

func CanSendEmergency(v Viewer) bool { return EmergencySenders.Has(v.Role) }

func CanBroadcast(v Viewer) bool { return BroadcastSenders.Has(v.Role) }

func IsManagement(role domain.UserRole) bool { return ManagementRoles.Has(role) }

func IsFactory(role domain.UserRole) bool { return FactoryRoles.Has(role) }
