package notification

import "time"

// Collection identifies a watched document store collection.
type Collection string

const (
	CollectionDoctors   Collection = "doctors"
	CollectionUsers     Collection = "users"
	CollectionCampaigns Collection = "campaigns"
)

// ChangeType classifies a change feed event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent is one document change delivered by the feed. Doc holds the
// decoded document for the event's collection: *DoctorDoc, *UserDoc, or
// *CampaignDoc. Decoding happens once at the feed boundary so downstream
// code switches on a closed set of variants instead of probing raw fields.
type ChangeEvent struct {
	Collection Collection
	ID         string
	Type       ChangeType
	Revision   string
	Doc        any
}

// Doctor verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// DoctorDoc is the doctors collection document shape.
type DoctorDoc struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Specialization     string `json:"specialization,omitempty"`
	VerificationStatus string `json:"verification_status"`
}

// EmailPreferences are a user's opt-in flags.
type EmailPreferences struct {
	Promotional   bool `json:"promotional"`
	HealthTips    bool `json:"health_tips"`
	DoctorUpdates bool `json:"doctor_updates"`
}

// UserDoc is the users collection document shape.
type UserDoc struct {
	ID            string           `json:"id"`
	Email         string           `json:"email"`
	FirstName     string           `json:"first_name,omitempty"`
	EmailVerified bool             `json:"email_verified"`
	Preferences   EmailPreferences `json:"preferences"`
}

// Campaign statuses. Transitions are monotonic: draft → scheduled → sent.
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSent      = "sent"
)

// CampaignDoc is the campaigns collection document shape.
type CampaignDoc struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Subject              string     `json:"subject,omitempty"`
	Subtitle             string     `json:"subtitle,omitempty"`
	Content              string     `json:"content"`
	CTAText              string     `json:"cta_text,omitempty"`
	CTALink              string     `json:"cta_link,omitempty"`
	Status               string     `json:"status"`
	DueAt                *time.Time `json:"due_at,omitempty"`
	RecipientCountAtSend int        `json:"recipient_count_at_send,omitempty"`
}
