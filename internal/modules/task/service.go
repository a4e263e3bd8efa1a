package task

import (
	"context"
	"errors"
	"strings"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/pkg/apperr"
	"ordertrack/internal/repository"

	"github.com/rs/zerolog"
)

type Service struct {
	tasks    TaskRepository
	users    UserLookup
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(tasks TaskRepository, users UserLookup, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		log:      log.With().Str("component", "task").Logger(),
		now:      time.Now,
	}
}

func (s *Service) Create(ctx context.Context, id *auth.Identity, req CreateTaskRequest) (*domain.Task, error) {
	if !access.CanCreateTask(id.Viewer()) {
		return nil, ErrCreateForbidden
	}
	if err := validateCreate(&req); err != nil {
		return nil, err
	}
	if req.AssignedTo != nil {
		if err := s.checkAssignee(ctx, *req.AssignedTo); err != nil {
			return nil, err
		}
	}

	t := &domain.Task{
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		CreatedBy:        id.UserID,
		AssignedTo:       req.AssignedTo,
		Status:           domain.TaskPending,
		Priority:         req.Priority,
		Category:         req.Category,
		Location:         req.Location,
		OrderID:          req.OrderID,
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
	}
	for i, title := range req.Steps {
		t.Steps = append(t.Steps, domain.TaskStep{Position: i + 1, Title: strings.TrimSpace(title)})
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	s.notify(ctx, notification.Event{Type: domain.NotifTaskAssigned, Actor: id.Actor(), Task: t})
	return t, nil
}

func (s *Service) Get(ctx context.Context, id *auth.Identity, taskID int64) (*domain.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadTask(id.Viewer(), t) {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, id *auth.Identity, q ListQuery) (*ListResponse, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperr.InvalidField("status", "unknown status")
	}
	if q.Priority != "" && !q.Priority.Valid() {
		return nil, apperr.InvalidField("priority", "unknown priority")
	}
	filter := repository.TaskFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Category: q.Category,
		OrderID:  q.OrderID,
		Page:     repository.Page{Page: q.Page, Limit: q.Limit},
	}
	tasks, total, err := s.tasks.List(ctx, access.TaskScope(id.Viewer()).Build(), filter)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return &ListResponse{Tasks: tasks, Total: total, Page: max(q.Page, 1), Limit: limit}, nil
}

// Update applies the set fields. Reassignment notifies the new assignee.
func (s *Service) Update(ctx context.Context, id *auth.Identity, taskID int64, req UpdateTaskRequest) (*domain.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanWriteTask(id.Viewer(), t) {
		return nil, ErrForbidden
	}
	if t.Closed() {
		return nil, ErrTaskClosed
	}
	loaded := t.Status

	fields := map[string]string{}
	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title == "" {
			fields["title"] = "required"
		} else {
			t.Title = title
		}
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			fields["priority"] = "unknown priority"
		} else {
			t.Priority = *req.Priority
		}
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if req.Location != nil {
		if !req.Location.Valid() {
			fields["location"] = "unknown location"
		} else {
			t.Location = *req.Location
		}
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.EstimatedMinutes != nil {
		t.EstimatedMinutes = *req.EstimatedMinutes
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.TaskPending, domain.TaskPostponed, domain.TaskCancelled:
			t.Status = *req.Status
		case domain.TaskInProgress:
			if t.Status == domain.TaskPending {
				_ = t.Start(s.now())
			} else {
				t.Status = domain.TaskInProgress
			}
		case domain.TaskCompleted:
			fields["status"] = "use the complete action"
		default:
			fields["status"] = "unknown status"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("Invalid request", fields)
	}

	reassigned := false
	if req.AssignedTo != nil && !t.IsAssignedTo(*req.AssignedTo) {
		if err := s.checkAssignee(ctx, *req.AssignedTo); err != nil {
			return nil, err
		}
		assignee := *req.AssignedTo
		t.AssignedTo = &assignee
		reassigned = true
	}

	t.UpdatedAt = s.now()
	if err := s.tasks.Save(ctx, t, loaded); err != nil {
		return nil, s.mapSaveErr(ctx, taskID, err)
	}
	if reassigned {
		s.notify(ctx, notification.Event{Type: domain.NotifTaskAssigned, Actor: id.Actor(), Task: t})
	}
	return t, nil
}

func (s *Service) Start(ctx context.Context, id *auth.Identity, taskID int64) (*domain.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanProgressTask(id.Viewer(), t) {
		return nil, ErrForbidden
	}
	if err := t.Start(s.now()); err != nil {
		return nil, mapDomainErr(err)
	}
	t.UpdatedAt = s.now()
	if err := s.tasks.Save(ctx, t, domain.TaskPending); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrTaskNotPending
		}
		return nil, s.mapErr(err)
	}
	return t, nil
}

// Complete closes the task. Completing twice fails and keeps the original
// completion time and duration.
func (s *Service) Complete(ctx context.Context, id *auth.Identity, taskID int64) (*domain.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanProgressTask(id.Viewer(), t) {
		return nil, ErrForbidden
	}
	loaded := t.Status
	if err := t.Complete(s.now()); err != nil {
		return nil, mapDomainErr(err)
	}
	t.UpdatedAt = s.now()
	if err := s.tasks.Save(ctx, t, loaded); err != nil {
		return nil, s.mapSaveErr(ctx, taskID, err)
	}
	s.notify(ctx, notification.Event{Type: domain.NotifTaskCompleted, Actor: id.Actor(), Task: t})
	return t, nil
}

// SetStepDone flips one step. Reaching 100% completes the task in the same
// transaction.
func (s *Service) SetStepDone(ctx context.Context, id *auth.Identity, taskID, stepID int64, req StepRequest) (*domain.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanProgressTask(id.Viewer(), t) {
		return nil, ErrForbidden
	}

	now := s.now()
	completed := false
	t, err = s.tasks.UpdateProgress(ctx, taskID, func(cur *domain.Task) (*domain.TaskStep, error) {
		step, done, err := cur.SetStepDone(stepID, req.Completed, id.UserID, now)
		if err != nil {
			return nil, err
		}
		cur.UpdatedAt = now
		completed = done
		return step, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, ErrTaskClosed
		}
		return nil, mapDomainErr(s.mapErr(err))
	}
	if completed {
		s.notify(ctx, notification.Event{Type: domain.NotifTaskCompleted, Actor: id.Actor(), Task: t})
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id *auth.Identity, taskID int64) error {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if !access.CanDeleteTask(id.Viewer(), t) {
		return ErrForbidden
	}
	return s.mapErr(s.tasks.Delete(ctx, taskID))
}

func (s *Service) load(ctx context.Context, taskID int64) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return t, nil
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}

// mapSaveErr turns a lost conditional write into the error the caller
// would have seen had it loaded the task after the winning write.
func (s *Service) mapSaveErr(ctx context.Context, taskID int64, err error) error {
	if !errors.Is(err, repository.ErrStale) {
		return s.mapErr(err)
	}
	cur, lerr := s.load(ctx, taskID)
	if lerr != nil {
		return lerr
	}
	switch cur.Status {
	case domain.TaskCompleted:
		return ErrTaskAlreadyCompleted
	case domain.TaskCancelled:
		return ErrTaskClosed
	}
	return ErrTaskChanged
}

func mapDomainErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotPending):
		return ErrTaskNotPending
	case errors.Is(err, domain.ErrTaskAlreadyCompleted):
		return ErrTaskAlreadyCompleted
	case errors.Is(err, domain.ErrTaskClosed):
		return ErrTaskClosed
	case errors.Is(err, domain.ErrStepNotFound):
		return ErrStepNotFound
	}
	return err
}

func (s *Service) checkAssignee(ctx context.Context, userID int64) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidAssignee
		}
		return err
	}
	if !u.IsActive {
		return ErrInvalidAssignee
	}
	return nil
}

func (s *Service) notify(ctx context.Context, ev notification.Event) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Int64("actor_id", ev.Actor.ID).Msg("notification dispatch failed")
	}
}

func validateCreate(req *CreateTaskRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "required"
	}
	if req.Location == "" {
		req.Location = domain.LocationFactory
	} else if !req.Location.Valid() {
		fields["location"] = "unknown location"
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	} else if !req.Priority.Valid() {
		fields["priority"] = "unknown priority"
	}
	for _, step := range req.Steps {
		if strings.TrimSpace(step) == "" {
			fields["steps"] = "step title required"
			break
		}
	}
	if len(fields) > 0 {
		return apperr.Validation("Invalid request", fields)
	}
	return nil
}
