package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupService removes notifications past their expiry.
type CleanupService struct {
	repo expiredDeleter
	log  zerolog.Logger
	now  func() time.Time
}

func NewCleanupService(repo expiredDeleter, log zerolog.Logger) *CleanupService {
	return &CleanupService{
		repo: repo,
		log:  log.With().Str("component", "notification_cleanup").Logger(),
		now:  time.Now,
	}
}

// CleanupExpired deletes expired notifications once.
func (c *CleanupService) CleanupExpired(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := c.repo.DeleteExpired(ctx, c.now())
	if err != nil {
		c.log.Error().Err(err).Msg("notification cleanup failed")
		return 0, err
	}

	c.log.Info().Int64("deleted", deleted).Dur("took", time.Since(start)).Msg("notification cleanup completed")
	return deleted, nil
}

// ScheduleCleanup runs CleanupExpired every interval until ctx is done or
// the returned channel is closed.
func (c *CleanupService) ScheduleCleanup(ctx context.Context, interval time.Duration) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = c.CleanupExpired(ctx)
			case <-stopCh:
				c.log.Info().Msg("scheduled cleanup stopped")
				return
			case <-ctx.Done():
				c.log.Info().Msg("scheduled cleanup stopped (context done)")
				return
			}
		}
	}()

	c.log.Info().Dur("interval", interval).Msg("scheduled cleanup started")
	return stopCh
}
