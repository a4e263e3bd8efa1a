package notification

import (
	"fmt"

	"ordertrack/internal/domain"
	"ordertrack/internal/pkg/apperr"
)

var (
	ErrNotificationNotFound = apperr.NotFound("NOTIFICATION_NOT_FOUND", "Notification not found")
	ErrBroadcastForbidden   = apperr.Forbidden("FORBIDDEN", "Only administrators can broadcast")
	ErrNoAudience           = apperr.InvalidField("roles", "at least one valid role is required")
)

// DispatchError reports that a notification could not be persisted. Nothing
// was emitted. Callers log it and keep the result of their own mutation.
type DispatchError struct {
	Type domain.NotificationType
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s notification: %v", e.Type, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
