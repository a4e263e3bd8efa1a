package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ordertrack/internal/config"
	"ordertrack/internal/database"
	"ordertrack/internal/domain"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/modules/notification"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/modules/task"
	"ordertrack/internal/pkg/logger"
	"ordertrack/internal/repository"
)

// Seeds a demo database. Orders and tasks go through the services so that
// numbering, timelines and notifications look like real traffic.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load failed")
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	ctx := context.Background()

	db, err := database.Connect(cfg.DB.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	// Cleanup old data (in safe order to avoid foreign key errors)
	log.Info().Msg("cleaning old data")
	for _, table := range []string{
		"notification_recipients", "notification_target_roles", "notifications",
		"task_steps", "tasks",
		"order_timeline", "order_notes", "order_responses", "order_items", "orders",
		"two_factor_backup_codes", "users",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Warn().Err(err).Str("table", table).Msg("cleanup skipped")
		}
	}

	// ================== USERS ==================
	users := repository.NewUserRepository(db)
	mk := func(username, fullName, password string, role domain.UserRole) *domain.User {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Msg("hash password")
		}
		u := &domain.User{
			Username:     username,
			Email:        username + "@ordertrack.local",
			FullName:     fullName,
			PasswordHash: string(hash),
			Role:         role,
			IsActive:     true,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Str("username", username).Msg("create user")
		}
		log.Info().Str("username", username).Str("password", password).Str("role", string(role)).Msg("user created")
		return u
	}
	admin := mk("admin", "Yönetici", "admin123", domain.RoleAdmin)
	staff := mk("zeynep", "Zeynep Kaya", "magaza123", domain.RoleStoreStaff)
	worker := mk("murat", "Murat Demir", "fabrika123", domain.RoleFactoryWorker)
	mk("kemal", "Kemal Yılmaz", "fabrika123", domain.RoleFactoryWorker)

	// No router: notifications are stored but not pushed.
	notifications := repository.NewNotificationRepository(db)
	dispatcher := notification.NewDispatcher(notifications, users, nil, nil, cfg.Notification.TTL, log)
	orders := order.NewService(repository.NewOrderRepository(db), users, dispatcher, log)
	tasks := task.NewService(repository.NewTaskRepository(db), users, dispatcher, log)

	// ================== ORDERS ==================
	asStaff := identity(staff)
	asWorker := identity(worker)
	asAdmin := identity(admin)

	due := time.Now().AddDate(0, 0, 7)
	o1, err := orders.Create(ctx, asStaff, order.CreateOrderRequest{
		Title:        "Mutfak dolabı",
		CustomerName: "Ayşe Çelik",
		Location:     domain.LocationFactory,
		Priority:     domain.PriorityHigh,
		DueDate:      &due,
		AssignedTo:   &worker.ID,
		Items: []order.ItemRequest{
			{Name: "Üst dolap", Quantity: decimal.NewFromInt(4), Unit: "adet"},
			{Name: "Tezgah", Quantity: decimal.RequireFromString("3.5"), Unit: "m"},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create order")
	}
	if _, err := orders.Respond(ctx, asWorker, o1.ID, order.RespondRequest{Status: domain.ResponseReceived, Note: "Ölçüler alındı"}); err != nil {
		log.Fatal().Err(err).Msg("respond order")
	}
	if _, err := orders.UpdateStatus(ctx, asAdmin, o1.ID, order.UpdateStatusRequest{Status: domain.OrderInProduction}); err != nil {
		log.Fatal().Err(err).Msg("update order status")
	}

	if _, err := orders.Create(ctx, asStaff, order.CreateOrderRequest{
		Title:    "Vitrin rafı",
		Location: domain.LocationStore,
		Items:    []order.ItemRequest{{Name: "Raf", Quantity: decimal.NewFromInt(6), Unit: "adet"}},
	}); err != nil {
		log.Fatal().Err(err).Msg("create order")
	}

	// ================== TASKS ==================
	t1, err := tasks.Create(ctx, asStaff, task.CreateTaskRequest{
		Title:            "Dolap gövdesi",
		AssignedTo:       &worker.ID,
		OrderID:          &o1.ID,
		Location:         domain.LocationFactory,
		EstimatedMinutes: 240,
		Steps:            []string{"Kesim", "Kenar bandı", "Montaj", "Paketleme"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create task")
	}
	if _, err := tasks.SetStepDone(ctx, asWorker, t1.ID, t1.Steps[0].ID, task.StepRequest{Completed: true}); err != nil {
		log.Fatal().Err(err).Msg("complete step")
	}

	if _, err := tasks.Create(ctx, asAdmin, task.CreateTaskRequest{
		Title:    "Haftalık sayım",
		Location: domain.LocationBoth,
		Priority: domain.PriorityLow,
	}); err != nil {
		log.Fatal().Err(err).Msg("create task")
	}

	log.Info().Msg("seed completed")
}

func identity(u *domain.User) *auth.Identity {
	return &auth.Identity{UserID: u.ID, Role: u.Role, DisplayName: u.DisplayName(), CreatedAt: u.CreatedAt}
}
