package order

import "ordertrack/internal/pkg/apperr"

var (
	ErrOrderNotFound   = apperr.NotFound("ORDER_NOT_FOUND", "Order not found")
	ErrForbidden       = apperr.Forbidden("FORBIDDEN", "You do not have access to this order")
	ErrCreateForbidden = apperr.Forbidden("FORBIDDEN", "Your role cannot create orders")
	ErrOrderClosed     = apperr.Conflict("ORDER_CLOSED", "Order is completed or cancelled")
	ErrNumberExhausted = apperr.Conflict("ORDER_NUMBER_CONFLICT", "Could not allocate an order number, try again")
	ErrInvalidStatus   = apperr.InvalidField("status", "unknown status")
	ErrInvalidAssignee = apperr.InvalidField("assigned_to", "assignee must be an active user")
)
