package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_ConsumeBackupCodeOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "ayse", domain.RoleStoreStaff)

	require.NoError(t, repo.ReplaceBackupCodes(ctx, u.ID, []string{"h1", "h2"}))

	ok, err := repo.ConsumeBackupCode(ctx, u.ID, "h1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeBackupCode(ctx, u.ID, "h1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := repo.CountUnusedBackupCodes(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	testutil.CreateUser(t, db, "mehmet", domain.RoleFactoryWorker)

	err := repo.Create(context.Background(), &domain.User{
		Username: "mehmet", Email: "other@example.com", PasswordHash: "x", Role: domain.RoleFactoryWorker, IsActive: true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_ActiveIDsByRole(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	w1 := testutil.CreateUser(t, db, "w1", domain.RoleFactoryWorker)
	w2 := testutil.CreateUser(t, db, "w2", domain.RoleFactoryWorker)
	testutil.CreateUser(t, db, "s1", domain.RoleStoreStaff)
	require.NoError(t, repo.SetActive(ctx, w2.ID, false))

	ids, err := repo.ActiveIDsByRole(ctx, domain.RoleFactoryWorker)
	require.NoError(t, err)
	assert.Equal(t, []int64{w1.ID}, ids)
}

func TestOrderRepository_AppendKeepsHistory(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	o := &domain.Order{
		OrderNumber: "SIP-20261018-001", Title: "Dolap", CreatedBy: 1,
		Location: domain.LocationFactory, Status: domain.OrderCreated, Priority: domain.PriorityMedium,
		Timeline: []domain.TimelineEntry{{Kind: domain.TimelineCreated, ActorID: 1, ActorName: "A"}},
	}
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.AppendResponse(ctx,
		&domain.OrderResponse{OrderID: o.ID, Status: domain.ResponseReceived, ActorID: 2, ActorName: "B"},
		&domain.TimelineEntry{Kind: domain.TimelineResponse, ActorID: 2, ActorName: "B"}))
	require.NoError(t, repo.AppendResponse(ctx,
		&domain.OrderResponse{OrderID: o.ID, Status: domain.ResponseDone, ActorID: 2, ActorName: "B"},
		&domain.TimelineEntry{Kind: domain.TimelineResponse, ActorID: 2, ActorName: "B"}))
	require.NoError(t, repo.UpdateStatus(ctx, o.ID, domain.OrderCompleted,
		&domain.TimelineEntry{Kind: domain.TimelineStatusChange, ActorID: 1, ActorName: "A", Status: string(domain.OrderCompleted)}))

	got, err := repo.GetByID(ctx, o.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, got.Status)
	require.Len(t, got.Responses, 2)
	assert.Equal(t, domain.ResponseReceived, got.Responses[0].Status)
	assert.Equal(t, domain.ResponseDone, got.Responses[1].Status)
	require.Len(t, got.Timeline, 4)
	assert.Equal(t, domain.TimelineCreated, got.Timeline[0].Kind)
	assert.Equal(t, domain.TimelineStatusChange, got.Timeline[3].Kind)

	err = repo.AppendNote(ctx, &domain.OrderNote{OrderID: 999, Text: "x"}, &domain.TimelineEntry{Kind: domain.TimelineNote})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepository_LastNumberWithPrefix(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	last, err := repo.LastNumberWithPrefix(ctx, "SIP-20261018-")
	require.NoError(t, err)
	assert.Empty(t, last)

	for _, n := range []string{"SIP-20261018-002", "SIP-20261018-010", "SIP-20261019-001"} {
		require.NoError(t, repo.Create(ctx, &domain.Order{
			OrderNumber: n, Title: n, CreatedBy: 1, Location: domain.LocationStore,
			Status: domain.OrderCreated, Priority: domain.PriorityLow,
		}))
	}
	last, err = repo.LastNumberWithPrefix(ctx, "SIP-20261018-")
	require.NoError(t, err)
	assert.Equal(t, "SIP-20261018-010", last)
}

func TestNotificationRepository_GlobalReadCreatesRow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	w := testutil.CreateUser(t, db, "worker", domain.RoleFactoryWorker)
	viewer := access.Viewer{ID: w.ID, Role: w.Role, CreatedAt: w.CreatedAt}

	n := &domain.Notification{
		Title: "Yeni sipariş", Type: domain.NotifOrderCreated, Priority: domain.PriorityMedium, IsGlobal: true,
		TargetRoles: []domain.NotificationRole{{Role: domain.RoleFactoryWorker}},
	}
	require.NoError(t, repo.Create(ctx, n))

	scope := access.NotificationScope(viewer).Build()
	unread, err := repo.CountUnread(ctx, scope, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	require.NoError(t, repo.MarkRead(ctx, n.ID, w.ID, time.Now()))
	require.NoError(t, repo.MarkRead(ctx, n.ID, w.ID, time.Now()))

	unread, err = repo.CountUnread(ctx, scope, w.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	list, err := repo.ListVisible(ctx, scope, w.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)

	var rows int64
	require.NoError(t, db.Model(&domain.NotificationRecipient{}).Where("notification_id = ?", n.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestNotificationRepository_MarkAllReadSkipsExpired(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	w := testutil.CreateUser(t, db, "worker", domain.RoleFactoryWorker)
	scope := access.NotificationScope(access.Viewer{ID: w.ID, Role: w.Role, CreatedAt: w.CreatedAt}).Build()
	past := time.Now().Add(-time.Minute)

	// Expired but not yet swept by the cleanup job.
	stale := &domain.Notification{
		Title: "Eski", Type: domain.NotifOrderCreated, Priority: domain.PriorityLow, IsGlobal: true, ExpiresAt: &past,
		TargetRoles: []domain.NotificationRole{{Role: domain.RoleFactoryWorker}},
	}
	live := &domain.Notification{
		Title: "Yeni", Type: domain.NotifOrderCreated, Priority: domain.PriorityLow, IsGlobal: true,
		TargetRoles: []domain.NotificationRole{{Role: domain.RoleFactoryWorker}},
	}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, live))

	unread, err := repo.CountUnread(ctx, scope, w.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), unread)

	marked, err := repo.MarkAllRead(ctx, scope, w.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, unread, marked)

	var rows int64
	require.NoError(t, db.Model(&domain.NotificationRecipient{}).Where("notification_id = ?", stale.ID).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestNotificationRepository_DeleteExpired(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	old := &domain.Notification{Title: "old", Type: domain.NotifOrderAssigned, Priority: domain.PriorityLow, ExpiresAt: &past,
		Recipients: []domain.NotificationRecipient{{UserID: 1}}}
	fresh := &domain.Notification{Title: "fresh", Type: domain.NotifOrderAssigned, Priority: domain.PriorityLow, ExpiresAt: &future,
		Recipients: []domain.NotificationRecipient{{UserID: 1}}}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	deleted, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestTaskRepository_ConcurrentStepsAddUp(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	task := &domain.Task{
		Title: "Dolap", CreatedBy: 1, Status: domain.TaskPending,
		Priority: domain.PriorityMedium, Location: domain.LocationFactory,
		Steps: []domain.TaskStep{
			{Position: 1, Title: "Kesim"}, {Position: 2, Title: "Zımpara"},
			{Position: 3, Title: "Boya"}, {Position: 4, Title: "Paketleme"},
		},
	}
	require.NoError(t, repo.Create(ctx, task))

	var completions atomic.Int32
	var wg sync.WaitGroup
	for _, step := range task.Steps {
		wg.Add(1)
		go func(stepID int64) {
			defer wg.Done()
			_, err := repo.UpdateProgress(ctx, task.ID, func(cur *domain.Task) (*domain.TaskStep, error) {
				s, done, err := cur.SetStepDone(stepID, true, 7, time.Now())
				if done {
					completions.Add(1)
				}
				return s, err
			})
			assert.NoError(t, err)
		}(step.ID)
	}
	wg.Wait()

	stored, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.CompletionPercentage)
	assert.Equal(t, domain.TaskCompleted, stored.Status)
	assert.Equal(t, int32(1), completions.Load())
}

func TestTaskRepository_SaveLosesToConcurrentWrite(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	task := &domain.Task{
		Title: "Dolap", CreatedBy: 1, Status: domain.TaskInProgress,
		Priority: domain.PriorityMedium, Location: domain.LocationFactory,
	}
	require.NoError(t, repo.Create(ctx, task))
	a, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)

	first := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	require.NoError(t, a.Complete(first))
	require.NoError(t, repo.Save(ctx, a, domain.TaskInProgress))

	require.NoError(t, b.Complete(first.Add(time.Hour)))
	assert.ErrorIs(t, repo.Save(ctx, b, domain.TaskInProgress), ErrStale)

	stored, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, first.Equal(*stored.CompletedAt))

	missing := &domain.Task{ID: task.ID + 100, Status: domain.TaskPending}
	assert.ErrorIs(t, repo.Save(ctx, missing, domain.TaskPending), ErrNotFound)
}
