package access

import "ordertrack/internal/domain"

type orderRow struct{ o *domain.Order }

// OrderRow adapts an order for in-memory policy evaluation.
func OrderRow(o *domain.Order) Row { return orderRow{o} }

func (r orderRow) Column(name string) any {
	switch name {
	case colCreatedBy:
		return r.o.CreatedBy
	case colAssignedTo:
		return normalize(r.o.AssignedTo)
	case colLocation:
		return string(r.o.Location)
	case colCreatedAt:
		return r.o.CreatedAt
	}
	return nil
}

func (orderRow) Related(string) []any { return nil }

type taskRow struct{ t *domain.Task }

// TaskRow adapts a task for in-memory policy evaluation.
func TaskRow(t *domain.Task) Row { return taskRow{t} }

func (r taskRow) Column(name string) any {
	switch name {
	case colCreatedBy:
		return r.t.CreatedBy
	case colAssignedTo:
		return normalize(r.t.AssignedTo)
	case colLocation:
		return string(r.t.Location)
	case colCreatedAt:
		return r.t.CreatedAt
	}
	return nil
}

func (taskRow) Related(string) []any { return nil }

type notificationRow struct{ n *domain.Notification }

// NotificationRow adapts a notification loaded with its target roles and
// recipients.
func NotificationRow(n *domain.Notification) Row { return notificationRow{n} }

func (r notificationRow) Column(name string) any {
	switch name {
	case colIsGlobal:
		return r.n.IsGlobal
	case colCreatedAt:
		return r.n.CreatedAt
	}
	return nil
}

func (r notificationRow) Related(table string) []any {
	switch table {
	case tableRecipients:
		out := make([]any, 0, len(r.n.Recipients))
		for _, rc := range r.n.Recipients {
			out = append(out, rc.UserID)
		}
		return out
	case tableTargetRoles:
		out := make([]any, 0, len(r.n.TargetRoles))
		for _, tr := range r.n.TargetRoles {
			out = append(out, string(tr.Role))
		}
		return out
	}
	return nil
}
