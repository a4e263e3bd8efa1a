package task

import "ordertrack/internal/pkg/apperr"

var (
	ErrTaskNotFound         = apperr.NotFound("TASK_NOT_FOUND", "Task not found")
	ErrStepNotFound         = apperr.NotFound("STEP_NOT_FOUND", "Step not found")
	ErrForbidden            = apperr.Forbidden("FORBIDDEN", "You do not have access to this task")
	ErrCreateForbidden      = apperr.Forbidden("FORBIDDEN", "Your role cannot create tasks")
	ErrTaskNotPending       = apperr.Conflict("TASK_NOT_PENDING", "Only pending tasks can be started")
	ErrTaskAlreadyCompleted = apperr.Conflict("TASK_ALREADY_COMPLETED", "Task is already completed")
	ErrTaskClosed           = apperr.Conflict("TASK_CLOSED", "Task is completed or cancelled")
	ErrTaskChanged          = apperr.Conflict("TASK_CHANGED", "Task was changed by someone else, reload and retry")
	ErrInvalidAssignee      = apperr.InvalidField("assigned_to", "assignee must be an active user")
)
