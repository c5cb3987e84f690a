package notification

import (
	"context"
	"time"
)

// ActivityEntry is a best-effort delivery audit record.
type ActivityEntry struct {
	Kind     Kind   `json:"kind"`
	OriginID string `json:"origin_id,omitempty"`
	Total    int    `json:"total"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
	Detail   string `json:"detail,omitempty"`
}

// DoctorCounts aggregates doctors by verification status.
type DoctorCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// UserCounts aggregates users by verification and opt-in flags.
type UserCounts struct {
	Total            int `json:"total"`
	EmailVerified    int `json:"email_verified"`
	PromotionalOptIn int `json:"promotional_opt_in"`
	HealthTipsOptIn  int `json:"health_tips_opt_in"`
}

// CampaignCounts aggregates campaigns by status.
type CampaignCounts struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
}

// StoreCounts is the aggregate read-model pulled from the document store.
type StoreCounts struct {
	Doctors   DoctorCounts   `json:"doctors"`
	Users     UserCounts     `json:"users"`
	Campaigns CampaignCounts `json:"campaigns"`
}

// DocumentStore defines the contract for the backing document store.
// Implementations live in infra/store/ (e.g., Supabase).
type DocumentStore interface {
	// Doctor retrieves a doctor document by ID.
	Doctor(ctx context.Context, id string) (*DoctorDoc, error)

	// UpdateDoctorVerification records a verification decision on a doctor.
	UpdateDoctorVerification(ctx context.Context, id, status, adminID string) error

	// PromotionalRecipients resolves the current set of verified users who
	// opted in to promotional messages.
	PromotionalRecipients(ctx context.Context) ([]Recipient, error)

	// HealthTipRecipients resolves the current set of verified users who
	// opted in to health tips.
	HealthTipRecipients(ctx context.Context) ([]Recipient, error)

	// Campaign retrieves a campaign document by ID.
	Campaign(ctx context.Context, id string) (*CampaignDoc, error)

	// ClaimScheduledCampaign conditionally transitions a campaign from
	// scheduled to sent. It returns true only for the caller that won the
	// transition; a campaign already sent (or not scheduled) is not claimed.
	ClaimScheduledCampaign(ctx context.Context, id string) (bool, error)

	// RecordCampaignSend stores the recipient count resolved at send time.
	RecordCampaignSend(ctx context.Context, id string, recipientCount int) error

	// ListDueCampaigns returns scheduled campaigns whose due time has passed.
	ListDueCampaigns(ctx context.Context, dueBefore time.Time, limit int) ([]*CampaignDoc, error)

	// UserPreferences retrieves a user's email opt-in flags.
	UserPreferences(ctx context.Context, userID string) (*EmailPreferences, error)

	// UpdateUserPreferences replaces a user's email opt-in flags.
	UpdateUserPreferences(ctx context.Context, userID string, prefs EmailPreferences) error

	// UnsubscribeUser clears every opt-in flag for a user.
	UnsubscribeUser(ctx context.Context, userID string) error

	// Counts aggregates doctors, users, and campaigns for the stats reporter.
	Counts(ctx context.Context) (*StoreCounts, error)

	// RecordActivity appends a delivery audit record. Best effort.
	RecordActivity(ctx context.Context, entry ActivityEntry) error
}
