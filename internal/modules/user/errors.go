package user

import "ordertrack/internal/pkg/apperr"

var (
	ErrUserNotFound      = apperr.NotFound("USER_NOT_FOUND", "User not found")
	ErrForbidden         = apperr.Forbidden("FORBIDDEN", "Only administrators can manage users")
	ErrUserExists        = apperr.Conflict("USER_EXISTS", "Username or email already in use")
	ErrCannotDeleteAdmin = apperr.Forbidden("ADMIN_UNDELETABLE", "Admin accounts cannot be deleted")
	ErrCannotDisableSelf = apperr.Conflict("CANNOT_DISABLE_SELF", "You cannot deactivate your own account")
)
