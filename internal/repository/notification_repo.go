package repository

import (
	"context"
	"time"

	"ordertrack/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts the notification with its target roles and recipients as
// one unit.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := r.db.WithContext(ctx).Preload("TargetRoles").Preload("Recipients").First(&n, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// readBy matches notifications the user has already read.
func readBy(userID int64) clause.Expression {
	return clause.Expr{
		SQL:  "EXISTS (SELECT 1 FROM notification_recipients nr WHERE nr.notification_id = notifications.id AND nr.user_id = ? AND nr.is_read = ?)",
		Vars: []any{userID, true},
	}
}

func notExpired(now time.Time) clause.Expression {
	return clause.Or(
		clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "expires_at"}, Value: nil},
		clause.Gt{Column: clause.Column{Table: clause.CurrentTable, Name: "expires_at"}, Value: now},
	)
}

// ListVisible returns the newest notifications within scope for userID,
// with the per-user read state filled in.
func (r *NotificationRepository) ListVisible(ctx context.Context, scope clause.Expression, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where(scope).
		Where(notExpired(time.Now()))
	if unreadOnly {
		q = q.Not(readBy(userID))
	}

	var list []domain.Notification
	if err := q.Preload("TargetRoles").Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	var rows []domain.NotificationRecipient
	if err := r.db.WithContext(ctx).Where("user_id = ? AND notification_id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	state := make(map[int64]domain.NotificationRecipient, len(rows))
	for _, row := range rows {
		state[row.NotificationID] = row
	}
	for i := range list {
		if row, ok := state[list[i].ID]; ok {
			list[i].IsRead = row.IsRead
			list[i].ReadAt = row.ReadAt
		}
	}
	return list, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, scope clause.Expression, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where(scope).
		Where(notExpired(time.Now())).
		Not(readBy(userID)).
		Count(&n).Error
	return n, err
}

// MarkRead flips the user's recipient row to read, creating it for global
// notifications that have no row yet.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID int64, at time.Time) error {
	row := domain.NotificationRecipient{
		NotificationID: notificationID,
		UserID:         userID,
		IsRead:         true,
		ReadAt:         &at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"is_read": true, "read_at": at}),
	}).Create(&row).Error
}

// MarkAllRead marks every unread, unexpired notification within scope as
// read. The count matches what CountUnread reported before the call.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, scope clause.Expression, userID int64, at time.Time) (int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where(scope).
		Where(notExpired(at)).
		Not(readBy(userID)).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := r.MarkRead(ctx, id, userID, at); err != nil {
			return 0, err
		}
	}
	return int64(len(ids)), nil
}

// MarkDelivered records that a channel was attempted for the given
// recipients. It never creates rows.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, notificationID int64, userIDs []int64, channel domain.DeliveryChannel) error {
	if len(userIDs) == 0 {
		return nil
	}
	column := map[domain.DeliveryChannel]string{
		domain.ChannelWeb:      "web_sent",
		domain.ChannelEmail:    "email_sent",
		domain.ChannelWhatsApp: "whatsapp_sent",
	}[channel]
	if column == "" {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.NotificationRecipient{}).
		Where("notification_id = ? AND user_id IN ?", notificationID, userIDs).
		Update(column, true).Error
}

// DeleteExpired removes notifications past their expires_at along with
// their child rows.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := func() *gorm.DB {
			return tx.Model(&domain.Notification{}).Select("id").Where("expires_at IS NOT NULL AND expires_at <= ?", now)
		}
		if err := tx.Where("notification_id IN (?)", expired()).Delete(&domain.NotificationRecipient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("notification_id IN (?)", expired()).Delete(&domain.NotificationRole{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&domain.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
