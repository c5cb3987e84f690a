package notification

import "github.com/hibiken/asynq"

// Scheduled maintenance task types. These are cron-fired housekeeping jobs,
// not an outbound message queue: no intent is ever persisted.
const (
	// TaskTypeQuotaReset zeroes the daily send counter.
	TaskTypeQuotaReset = "maintenance:quota_reset"

	// TaskTypeCampaignSweep reconciles due scheduled campaigns missed by
	// the feed.
	TaskTypeCampaignSweep = "maintenance:campaign_sweep"
)

// NewQuotaResetTask creates the daily quota reset task.
func NewQuotaResetTask() *asynq.Task {
	return asynq.NewTask(TaskTypeQuotaReset, nil)
}

// NewCampaignSweepTask creates the due-campaign sweep task.
func NewCampaignSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCampaignSweep, nil)
}
