package queue

import (
	"fmt"

	"medinotify/internal/domain/notification"

	"github.com/hibiken/asynq"
)

// NewServer creates a new asynq server for maintenance task processing.
func NewServer(redisAddr, password string, db int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"maintenance": 1,
			},
		},
	)
}

// NewScheduler creates a new asynq scheduler that emits maintenance tasks
// on cron expressions.
func NewScheduler(redisAddr, password string, db int) *asynq.Scheduler {
	return asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: password,
			DB:       db,
		},
		&asynq.SchedulerOpts{},
	)
}

// RegisterMaintenance registers the recurring maintenance tasks: the daily
// quota reset and the scheduled campaign sweep.
func RegisterMaintenance(scheduler *asynq.Scheduler, quotaResetCron, campaignSweepCron string) error {
	if _, err := scheduler.Register(quotaResetCron, notification.NewQuotaResetTask(), asynq.Queue("maintenance")); err != nil {
		return fmt.Errorf("registering quota reset: %w", err)
	}

	if _, err := scheduler.Register(campaignSweepCron, notification.NewCampaignSweepTask(), asynq.Queue("maintenance")); err != nil {
		return fmt.Errorf("registering campaign sweep: %w", err)
	}

	return nil
}
