package domain

import (
	"errors"
	"math"
	"time"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "beklemede"
	TaskInProgress TaskStatus = "devam_ediyor"
	TaskCompleted  TaskStatus = "tamamlandi"
	TaskCancelled  TaskStatus = "iptal_edildi"
	TaskPostponed  TaskStatus = "ertelendi"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled, TaskPostponed:
		return true
	}
	return false
}

var (
	ErrTaskNotPending       = errors.New("task is not pending")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	ErrTaskClosed           = errors.New("task is closed")
	ErrStepNotFound         = errors.New("step not found")
)

type Task struct {
	ID                    int64      `json:"id" gorm:"primaryKey"`
	Title                 string     `json:"title" gorm:"size:255;not null"`
	Description           string     `json:"description,omitempty" gorm:"type:text"`
	CreatedBy             int64      `json:"created_by" gorm:"index;not null"`
	AssignedTo            *int64     `json:"assigned_to,omitempty" gorm:"index"`
	Status                TaskStatus `json:"status" gorm:"size:32;index;not null"`
	Priority              Priority   `json:"priority" gorm:"size:16;index;not null"`
	Category              string     `json:"category,omitempty" gorm:"size:64;index"`
	Location              Location   `json:"location" gorm:"size:16;index;not null"`
	OrderID               *int64     `json:"order_id,omitempty" gorm:"index"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	EstimatedMinutes      int        `json:"estimated_minutes,omitempty"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	CompletionPercentage  int        `json:"completion_percentage" gorm:"not null;default:0"`
	CreatedAt             time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt             time.Time  `json:"updated_at"`

	Steps []TaskStep `json:"steps,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

type TaskStep struct {
	ID          int64      `json:"id" gorm:"primaryKey"`
	TaskID      int64      `json:"-" gorm:"index;not null"`
	Position    int        `json:"position" gorm:"not null"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CompletedBy *int64     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (TaskStep) TableName() string { return "task_steps" }

func (t *Task) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Closed tasks accept no further progress.
func (t *Task) Closed() bool {
	return t.Status == TaskCompleted || t.Status == TaskCancelled
}

// CompletionPercent is round(done/total*100); zero steps count as 0%.
func CompletionPercent(steps []TaskStep) int {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.Completed {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(steps)) * 100))
}

// Start moves a pending task into progress.
func (t *Task) Start(now time.Time) error {
	if t.Status != TaskPending {
		return ErrTaskNotPending
	}
	t.Status = TaskInProgress
	t.StartedAt = &now
	return nil
}

// Complete closes the task. A completed task keeps its original
// completion time and duration.
func (t *Task) Complete(now time.Time) error {
	if t.Status == TaskCompleted {
		return ErrTaskAlreadyCompleted
	}
	if t.Status == TaskCancelled {
		return ErrTaskClosed
	}
	t.markCompleted(now)
	return nil
}

func (t *Task) markCompleted(now time.Time) {
	t.Status = TaskCompleted
	t.CompletedAt = &now
	from := t.CreatedAt
	if t.StartedAt != nil {
		from = *t.StartedAt
	}
	minutes := int(now.Sub(from).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	t.ActualDurationMinutes = &minutes
}

// SetStepDone flips one step and recomputes the percentage. When the
// percentage reaches 100 the task completes in the same change; the
// returned flag reports that transition. A pending task is started.
func (t *Task) SetStepDone(stepID int64, done bool, actorID int64, now time.Time) (*TaskStep, bool, error) {
	if t.Closed() {
		return nil, false, ErrTaskClosed
	}
	idx := -1
	for i := range t.Steps {
		if t.Steps[i].ID == stepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false, ErrStepNotFound
	}

	step := &t.Steps[idx]
	step.Completed = done
	if done {
		step.CompletedBy = &actorID
		step.CompletedAt = &now
	} else {
		step.CompletedBy = nil
		step.CompletedAt = nil
	}

	if t.Status == TaskPending {
		t.Status = TaskInProgress
		t.StartedAt = &now
	}

	t.CompletionPercentage = CompletionPercent(t.Steps)
	if t.CompletionPercentage == 100 {
		t.markCompleted(now)
		return step, true, nil
	}
	return step, false, nil
}
