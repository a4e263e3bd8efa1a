package repository

import (
	"context"
	"time"

	"ordertrack/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order with its items and timeline entries in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

// LastNumberWithPrefix returns the highest order number starting with
// prefix, or "" when the day has none yet.
func (r *OrderRepository) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return "", err
	}
	return numbers[0], nil
}

// GetByID loads the order. With details, items, timeline, responses and
// notes are loaded in insertion order.
func (r *OrderRepository) GetByID(ctx context.Context, id int64, details bool) (*domain.Order, error) {
	q := r.db.WithContext(ctx)
	if details {
		q = q.
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
			Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
			Preload("Responses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
			Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") })
	}
	var o domain.Order
	if err := q.First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

type OrderFilter struct {
	Status   domain.OrderStatus
	Priority domain.Priority
	Page
}

// List returns one page of orders matching scope and the filter, newest
// first, plus the total count.
func (r *OrderRepository) List(ctx context.Context, scope clause.Expression, f OrderFilter) ([]domain.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{}).Where(scope)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page.normalize()
	var orders []domain.Order
	err := q.Preload("Items").
		Order("created_at DESC, id DESC").
		Offset(page.offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// StatusCounts counts orders per status within scope.
func (r *OrderRepository) StatusCounts(ctx context.Context, scope clause.Expression) (map[domain.OrderStatus]int64, error) {
	var rows []struct {
		Status domain.OrderStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Select("status, COUNT(*) AS count").
		Where(scope).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// UpdateStatus sets the status and appends the timeline entry.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, entry *domain.TimelineEntry) error {
	return r.updateWithEntry(ctx, id, map[string]any{"status": status}, entry)
}

// Assign sets the assignee and appends the timeline entry.
func (r *OrderRepository) Assign(ctx context.Context, id int64, assigneeID int64, entry *domain.TimelineEntry) error {
	return r.updateWithEntry(ctx, id, map[string]any{"assigned_to": assigneeID}, entry)
}

func (r *OrderRepository) updateWithEntry(ctx context.Context, id int64, fields map[string]any, entry *domain.TimelineEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Order{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		entry.OrderID = id
		return tx.Create(entry).Error
	})
}

// AppendResponse inserts a response and its timeline entry. Existing
// responses are never touched.
func (r *OrderRepository) AppendResponse(ctx context.Context, resp *domain.OrderResponse, entry *domain.TimelineEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touch(tx, resp.OrderID); err != nil {
			return err
		}
		if err := tx.Create(resp).Error; err != nil {
			return err
		}
		entry.OrderID = resp.OrderID
		return tx.Create(entry).Error
	})
}

func (r *OrderRepository) AppendNote(ctx context.Context, note *domain.OrderNote, entry *domain.TimelineEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touch(tx, note.OrderID); err != nil {
			return err
		}
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		entry.OrderID = note.OrderID
		return tx.Create(entry).Error
	})
}

// touch bumps updated_at and reports ErrNotFound for a missing order.
func touch(tx *gorm.DB, orderID int64) error {
	res := tx.Model(&domain.Order{}).Where("id = ?", orderID).Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the order and everything it owns.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{&domain.OrderItem{}, &domain.TimelineEntry{}, &domain.OrderResponse{}, &domain.OrderNote{}} {
			if err := tx.Where("order_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&domain.Order{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
