package task

import (
	"context"
	"testing"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/repository"
	"ordertrack/internal/testutil"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Dispatch(ctx context.Context, ev notification.Event) (*domain.Notification, error) {
	args := m.Called(ev.Type, ev.Actor.ID)
	return nil, args.Error(0)
}

type fixture struct {
	db       *gorm.DB
	notifier *MockNotifier
	svc      *Service
	now      time.Time
	staff    *domain.User
	worker   *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		notifier: &MockNotifier{},
		now:      time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	f.notifier.On("Dispatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewService(repository.NewTaskRepository(db), repository.NewUserRepository(db), f.notifier, zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }
	f.staff = testutil.CreateUser(t, db, "zeynep", domain.RoleStoreStaff)
	f.worker = testutil.CreateUser(t, db, "murat", domain.RoleFactoryWorker)
	return f
}

func identityOf(u *domain.User) *auth.Identity {
	return &auth.Identity{UserID: u.ID, Role: u.Role, DisplayName: u.DisplayName(), CreatedAt: u.CreatedAt}
}

func (f *fixture) create(t *testing.T, req CreateTaskRequest) *domain.Task {
	t.Helper()
	if req.Title == "" {
		req.Title = "Görev"
	}
	task, err := f.svc.Create(context.Background(), identityOf(f.staff), req)
	require.NoError(t, err)
	return task
}

func TestSetStepDone_LastStepCompletesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{
		AssignedTo: &f.worker.ID,
		Steps:      []string{"Kesim", "Zımpara", "Boya", "Paketleme"},
	})
	require.Len(t, task.Steps, 4)
	worker := identityOf(f.worker)

	var got *domain.Task
	var err error
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(10 * time.Minute)
		got, err = f.svc.SetStepDone(ctx, worker, task.ID, task.Steps[i].ID, StepRequest{Completed: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 75, got.CompletionPercentage)
	assert.Equal(t, domain.TaskInProgress, got.Status)
	f.notifier.AssertNotCalled(t, "Dispatch", domain.NotifTaskCompleted, f.worker.ID)

	f.now = f.now.Add(10 * time.Minute)
	got, err = f.svc.SetStepDone(ctx, worker, task.ID, task.Steps[3].ID, StepRequest{Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 100, got.CompletionPercentage)
	assert.Equal(t, domain.TaskCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	f.notifier.AssertCalled(t, "Dispatch", domain.NotifTaskCompleted, f.worker.ID)

	stored, err := f.svc.Get(ctx, worker, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.CompletionPercentage)
	assert.Equal(t, domain.TaskCompleted, stored.Status)
	for _, s := range stored.Steps {
		assert.True(t, s.Completed)
		require.NotNil(t, s.CompletedBy)
		assert.Equal(t, f.worker.ID, *s.CompletedBy)
	}
	// Started by the first step, finished three steps later.
	require.NotNil(t, stored.ActualDurationMinutes)
	assert.Equal(t, 30, *stored.ActualDurationMinutes)

	_, err = f.svc.SetStepDone(ctx, worker, task.ID, task.Steps[0].ID, StepRequest{Completed: false})
	assert.ErrorIs(t, err, ErrTaskClosed)
}

func TestComplete_IsIdempotentOnTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID})
	worker := identityOf(f.worker)

	_, err := f.svc.Start(ctx, worker, task.ID)
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, worker, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotPending)

	f.now = f.now.Add(45 * time.Minute)
	first, err := f.svc.Complete(ctx, worker, task.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ActualDurationMinutes)
	assert.Equal(t, 45, *first.ActualDurationMinutes)

	f.now = f.now.Add(3 * time.Hour)
	_, err = f.svc.Complete(ctx, worker, task.ID)
	assert.ErrorIs(t, err, ErrTaskAlreadyCompleted)

	stored, err := f.svc.Get(ctx, worker, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, first.CompletedAt.Equal(*stored.CompletedAt))
	assert.Equal(t, 45, *stored.ActualDurationMinutes)
	f.notifier.AssertNumberOfCalls(t, "Dispatch", 2) // assigned + completed once
}

// earlyReader serves one GetByID from a copy taken before the test's other
// writes, as a request that loaded the task earlier would still see it.
type earlyReader struct {
	*repository.TaskRepository
	early *domain.Task
}

func (r *earlyReader) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if r.early != nil && r.early.ID == id {
		t := r.early
		r.early = nil
		return t, nil
	}
	return r.TaskRepository.GetByID(ctx, id)
}

func (f *fixture) serviceLoadedEarly(t *testing.T, taskID int64) *Service {
	t.Helper()
	repo := repository.NewTaskRepository(f.db)
	early, err := repo.GetByID(context.Background(), taskID)
	require.NoError(t, err)
	svc := NewService(&earlyReader{TaskRepository: repo, early: early}, repository.NewUserRepository(f.db), f.notifier, zerolog.Nop())
	svc.now = func() time.Time { return f.now }
	return svc
}

func TestSetStepDone_InterleavedStepsCompleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID, Steps: []string{"Kesim", "Boya"}})
	worker := identityOf(f.worker)
	other := f.serviceLoadedEarly(t, task.ID)

	got, err := f.svc.SetStepDone(ctx, worker, task.ID, task.Steps[0].ID, StepRequest{Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 50, got.CompletionPercentage)

	// The second request loaded the task with no steps done.
	got, err = other.SetStepDone(ctx, worker, task.ID, task.Steps[1].ID, StepRequest{Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 100, got.CompletionPercentage)
	assert.Equal(t, domain.TaskCompleted, got.Status)

	stored, err := f.svc.Get(ctx, worker, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, stored.CompletionPercentage)
	assert.Equal(t, domain.TaskCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	f.notifier.AssertNumberOfCalls(t, "Dispatch", 2) // assigned + completed once
}

func TestComplete_RaceKeepsFirstCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID})
	worker := identityOf(f.worker)
	_, err := f.svc.Start(ctx, worker, task.ID)
	require.NoError(t, err)
	other := f.serviceLoadedEarly(t, task.ID)

	f.now = f.now.Add(45 * time.Minute)
	first, err := f.svc.Complete(ctx, worker, task.ID)
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Hour)
	_, err = other.Complete(ctx, worker, task.ID)
	assert.ErrorIs(t, err, ErrTaskAlreadyCompleted)

	stored, err := f.svc.Get(ctx, worker, task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, first.CompletedAt.Equal(*stored.CompletedAt))
	assert.Equal(t, 45, *stored.ActualDurationMinutes)
	f.notifier.AssertNumberOfCalls(t, "Dispatch", 2)
}

func TestUpdate_DoesNotReopenCompletedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID})
	other := f.serviceLoadedEarly(t, task.ID)

	_, err := f.svc.Complete(ctx, identityOf(f.worker), task.ID)
	require.NoError(t, err)

	title := "Yeni başlık"
	_, err = other.Update(ctx, identityOf(f.staff), task.ID, UpdateTaskRequest{Title: &title})
	assert.ErrorIs(t, err, ErrTaskAlreadyCompleted)

	stored, err := f.svc.Get(ctx, identityOf(f.staff), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, stored.Status)
	assert.NotEqual(t, title, stored.Title)
}

func TestProgress_OnlyAdminOrAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID, Steps: []string{"tek"}})

	_, err := f.svc.Complete(ctx, identityOf(f.staff), task.ID)
	assert.ErrorIs(t, err, ErrForbidden, "creator may edit but not progress")

	_, err = f.svc.SetStepDone(ctx, identityOf(f.worker), task.ID, 9999, StepRequest{Completed: true})
	assert.ErrorIs(t, err, ErrStepNotFound)

	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	got, err := f.svc.SetStepDone(ctx, identityOf(admin), task.ID, task.Steps[0].ID, StepRequest{Completed: true})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
}

func TestList_ScopeIncludesBothLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	both := f.create(t, CreateTaskRequest{Title: "ortak", Location: domain.LocationBoth})
	factory := f.create(t, CreateTaskRequest{Title: "fabrika", Location: domain.LocationFactory})
	store := f.create(t, CreateTaskRequest{Title: "magaza", Location: domain.LocationStore})

	res, err := f.svc.List(ctx, identityOf(f.worker), ListQuery{})
	require.NoError(t, err)
	ids := make([]int64, 0, len(res.Tasks))
	for _, task := range res.Tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []int64{both.ID, factory.ID}, ids)

	_, err = f.svc.Get(ctx, identityOf(f.worker), store.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdate_ReassignNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, CreateTaskRequest{Title: "genel"})
	other := testutil.CreateUser(t, f.db, "kemal", domain.RoleFactoryWorker)

	title := "Montaj"
	got, err := f.svc.Update(ctx, identityOf(f.staff), task.ID, UpdateTaskRequest{Title: &title, AssignedTo: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Montaj", got.Title)
	assert.True(t, got.IsAssignedTo(other.ID))
	f.notifier.AssertNumberOfCalls(t, "Dispatch", 2)

	done := domain.TaskCompleted
	_, err = f.svc.Update(ctx, identityOf(f.staff), task.ID, UpdateTaskRequest{Status: &done})
	assert.Error(t, err)

	_, err = f.svc.Update(ctx, identityOf(f.worker), task.ID, UpdateTaskRequest{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateAndDelete_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, identityOf(f.worker), CreateTaskRequest{Title: "x"})
	assert.ErrorIs(t, err, ErrCreateForbidden)

	task := f.create(t, CreateTaskRequest{AssignedTo: &f.worker.ID})
	assert.ErrorIs(t, f.svc.Delete(ctx, identityOf(f.worker), task.ID), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, identityOf(f.staff), task.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, identityOf(f.staff), task.ID), ErrTaskNotFound)
}
