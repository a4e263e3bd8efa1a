package repository

import (
	"context"

	"ordertrack/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts the task with its steps.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	var t domain.Task
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		First(&t, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

type TaskFilter struct {
	Status   domain.TaskStatus
	Priority domain.Priority
	Category string
	OrderID  int64
	Page
}

func (r *TaskRepository) List(ctx context.Context, scope clause.Expression, f TaskFilter) ([]domain.Task, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Task{}).Where(scope)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.OrderID > 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page.normalize()
	var tasks []domain.Task
	err := q.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Order("created_at DESC, id DESC").
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// Save writes the task's own columns while the stored status is still
// from, the status the caller loaded. ErrStale means another writer moved
// the task first. Steps and the completion percentage are not touched.
func (r *TaskRepository) Save(ctx context.Context, t *domain.Task, from domain.TaskStatus) error {
	res := r.db.WithContext(ctx).Model(t).
		Where("status = ?", from).
		Select(taskColumns).
		Updates(t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return r.missingOrStale(ctx, t.ID)
}

// UpdateProgress loads the task and its steps under a row lock, lets apply
// change one step, then writes that step and the recomputed task state in
// the same transaction. Concurrent step changes on one task serialize here,
// so the percentage always matches the stored steps.
func (r *TaskRepository) UpdateProgress(ctx context.Context, taskID int64, apply func(t *domain.Task) (*domain.TaskStep, error)) (*domain.Task, error) {
	var t domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
			First(&t, taskID).Error
		if err != nil {
			return translate(err)
		}

		step, err := apply(&t)
		if err != nil {
			return err
		}

		res := tx.Model(step).Select("completed", "completed_by", "completed_at").Updates(step)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		res = tx.Model(&t).
			Where("status NOT IN ?", []domain.TaskStatus{domain.TaskCompleted, domain.TaskCancelled}).
			Select(progressColumns).
			Updates(&t)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) missingOrStale(ctx context.Context, id int64) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStale
}

var taskColumns = []string{
	"title", "description", "assigned_to", "status", "priority", "category", "location",
	"order_id", "due_date", "estimated_minutes", "started_at", "completed_at",
	"actual_duration_minutes", "updated_at",
}

var progressColumns = []string{
	"status", "started_at", "completed_at", "actual_duration_minutes",
	"completion_percentage", "updated_at",
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&domain.TaskStep{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Task{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
