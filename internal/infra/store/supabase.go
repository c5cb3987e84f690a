package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medinotify/internal/common"
	"medinotify/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	doctorsTable   = "doctors"
	usersTable     = "users"
	campaignsTable = "campaigns"
	activityTable  = "activity_log"
)

var _ notification.DocumentStore = (*SupabaseStore)(nil)

// SupabaseStore implements the document store using the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed document store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// doctorRow is the internal representation of a doctors row.
type doctorRow struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Specialization     string `json:"specialization,omitempty"`
	VerificationStatus string `json:"verification_status"`
}

// userRow is the internal representation of a users row.
type userRow struct {
	ID                 string `json:"id,omitempty"`
	Email              string `json:"email"`
	FirstName          string `json:"first_name,omitempty"`
	EmailVerified      bool   `json:"email_verified"`
	PromotionalOptIn   bool   `json:"promotional_opt_in"`
	HealthTipsOptIn    bool   `json:"health_tips_opt_in"`
	DoctorUpdatesOptIn bool   `json:"doctor_updates_opt_in"`
}

// campaignRow is the internal representation of a campaigns row.
type campaignRow struct {
	ID                   string  `json:"id,omitempty"`
	Title                string  `json:"title"`
	Subject              *string `json:"subject,omitempty"`
	Subtitle             *string `json:"subtitle,omitempty"`
	Content              string  `json:"content"`
	CTAText              *string `json:"cta_text,omitempty"`
	CTALink              *string `json:"cta_link,omitempty"`
	Status               string  `json:"status"`
	DueAt                *string `json:"due_at,omitempty"`
	RecipientCountAtSend *int    `json:"recipient_count_at_send,omitempty"`
}

// Doctor retrieves a doctor document by ID.
func (s *SupabaseStore) Doctor(ctx context.Context, id string) (*notification.DoctorDoc, error) {
	data, _, err := s.client.From(doctorsTable).Select("*", "exact", false).Eq("id", id).Single().Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching doctor: %w", common.NewNotFoundError("doctor", id))
	}

	var row doctorRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("parsing doctor row: %w", err)
	}

	return rowToDoctor(&row), nil
}

// UpdateDoctorVerification records a verification decision on a doctor.
func (s *SupabaseStore) UpdateDoctorVerification(ctx context.Context, id, status, adminID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"verification_status": status,
		"verified_at":         now,
		"verified_by":         adminID,
		"updated_at":          now,
	}

	_, _, err := s.client.From(doctorsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("updating doctor verification: %w", err)
	}
	return nil
}

// PromotionalRecipients resolves verified users opted in to promotions.
func (s *SupabaseStore) PromotionalRecipients(ctx context.Context) ([]notification.Recipient, error) {
	return s.recipientsByOptIn("promotional_opt_in")
}

// HealthTipRecipients resolves verified users opted in to health tips.
func (s *SupabaseStore) HealthTipRecipients(ctx context.Context) ([]notification.Recipient, error) {
	return s.recipientsByOptIn("health_tips_opt_in")
}

// recipientsByOptIn is the shared opt-in recipient query.
func (s *SupabaseStore) recipientsByOptIn(optInColumn string) ([]notification.Recipient, error) {
	data, _, err := s.client.From(usersTable).
		Select("id,email,first_name", "exact", false).
		Eq("email_verified", "true").
		Eq(optInColumn, "true").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing %s recipients: %w", optInColumn, err)
	}

	var rows []userRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing recipient rows: %w", err)
	}

	recipients := make([]notification.Recipient, 0, len(rows))
	for _, row := range rows {
		if row.Email == "" {
			continue
		}
		recipients = append(recipients, notification.Recipient{
			Address: row.Email,
			Name:    row.FirstName,
			UserID:  row.ID,
		})
	}
	return recipients, nil
}

// Campaign retrieves a campaign document by ID.
func (s *SupabaseStore) Campaign(ctx context.Context, id string) (*notification.CampaignDoc, error) {
	data, _, err := s.client.From(campaignsTable).Select("*", "exact", false).Eq("id", id).Single().Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching campaign: %w", common.NewNotFoundError("campaign", id))
	}

	var row campaignRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("parsing campaign row: %w", err)
	}

	return rowToCampaign(&row), nil
}

// ClaimScheduledCampaign conditionally transitions a campaign from scheduled
// to sent. The update filters on both id and the current status, so only one
// concurrent caller gets a row back: that caller won the transition.
func (s *SupabaseStore) ClaimScheduledCampaign(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"status":     notification.CampaignSent,
		"sent_at":    now,
		"updated_at": now,
	}

	data, _, err := s.client.From(campaignsTable).
		Update(update, "representation", "").
		Eq("id", id).
		Eq("status", notification.CampaignScheduled).
		Execute()
	if err != nil {
		return false, fmt.Errorf("claiming campaign: %w", err)
	}

	var rows []campaignRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("parsing claim response: %w", err)
	}

	return len(rows) > 0, nil
}

// RecordCampaignSend stores the recipient count resolved at send time.
func (s *SupabaseStore) RecordCampaignSend(ctx context.Context, id string, recipientCount int) error {
	update := map[string]any{
		"recipient_count_at_send": recipientCount,
		"updated_at":              time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(campaignsTable).Update(update, "", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("recording campaign send: %w", err)
	}
	return nil
}

// ListDueCampaigns returns scheduled campaigns whose due time has passed.
func (s *SupabaseStore) ListDueCampaigns(ctx context.Context, dueBefore time.Time, limit int) ([]*notification.CampaignDoc, error) {
	if limit <= 0 {
		limit = 20
	}

	data, _, err := s.client.From(campaignsTable).
		Select("*", "exact", false).
		Eq("status", notification.CampaignScheduled).
		Lte("due_at", dueBefore.UTC().Format(time.RFC3339Nano)).
		Order("due_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing due campaigns: %w", err)
	}

	var rows []campaignRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing due campaigns: %w", err)
	}

	campaigns := make([]*notification.CampaignDoc, len(rows))
	for i := range rows {
		campaigns[i] = rowToCampaign(&rows[i])
	}
	return campaigns, nil
}

// UserPreferences retrieves a user's email opt-in flags.
func (s *SupabaseStore) UserPreferences(ctx context.Context, userID string) (*notification.EmailPreferences, error) {
	data, _, err := s.client.From(usersTable).
		Select("promotional_opt_in,health_tips_opt_in,doctor_updates_opt_in", "exact", false).
		Eq("id", userID).
		Single().
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", common.NewNotFoundError("user", userID))
	}

	var row userRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("parsing preferences row: %w", err)
	}

	return &notification.EmailPreferences{
		Promotional:   row.PromotionalOptIn,
		HealthTips:    row.HealthTipsOptIn,
		DoctorUpdates: row.DoctorUpdatesOptIn,
	}, nil
}

// UpdateUserPreferences replaces a user's email opt-in flags.
func (s *SupabaseStore) UpdateUserPreferences(ctx context.Context, userID string, prefs notification.EmailPreferences) error {
	update := map[string]any{
		"promotional_opt_in":    prefs.Promotional,
		"health_tips_opt_in":    prefs.HealthTips,
		"doctor_updates_opt_in": prefs.DoctorUpdates,
		"updated_at":            time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(usersTable).Update(update, "", "").Eq("id", userID).Execute()
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	return nil
}

// UnsubscribeUser clears every opt-in flag for a user.
func (s *SupabaseStore) UnsubscribeUser(ctx context.Context, userID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	update := map[string]any{
		"promotional_opt_in":    false,
		"health_tips_opt_in":    false,
		"doctor_updates_opt_in": false,
		"unsubscribed_at":       now,
		"updated_at":            now,
	}

	_, _, err := s.client.From(usersTable).Update(update, "", "").Eq("id", userID).Execute()
	if err != nil {
		return fmt.Errorf("unsubscribing user: %w", err)
	}
	return nil
}

// Counts aggregates doctors, users, and campaigns for the stats reporter.
func (s *SupabaseStore) Counts(ctx context.Context) (*notification.StoreCounts, error) {
	counts := &notification.StoreCounts{}

	queries := []struct {
		table   string
		target  *int
		filters map[string]string
	}{
		{doctorsTable, &counts.Doctors.Total, nil},
		{doctorsTable, &counts.Doctors.Pending, map[string]string{"verification_status": notification.VerificationPending}},
		{doctorsTable, &counts.Doctors.Approved, map[string]string{"verification_status": notification.VerificationApproved}},
		{doctorsTable, &counts.Doctors.Rejected, map[string]string{"verification_status": notification.VerificationRejected}},
		{usersTable, &counts.Users.Total, nil},
		{usersTable, &counts.Users.EmailVerified, map[string]string{"email_verified": "true"}},
		{usersTable, &counts.Users.PromotionalOptIn, map[string]string{"email_verified": "true", "promotional_opt_in": "true"}},
		{usersTable, &counts.Users.HealthTipsOptIn, map[string]string{"email_verified": "true", "health_tips_opt_in": "true"}},
		{campaignsTable, &counts.Campaigns.Total, nil},
		{campaignsTable, &counts.Campaigns.Draft, map[string]string{"status": notification.CampaignDraft}},
		{campaignsTable, &counts.Campaigns.Scheduled, map[string]string{"status": notification.CampaignScheduled}},
		{campaignsTable, &counts.Campaigns.Sent, map[string]string{"status": notification.CampaignSent}},
	}

	for _, q := range queries {
		n, err := s.headCount(q.table, q.filters)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.table, err)
		}
		*q.target = n
	}

	return counts, nil
}

// headCount runs a count-only query (head=true returns no rows).
func (s *SupabaseStore) headCount(table string, filters map[string]string) (int, error) {
	query := s.client.From(table).Select("id", "exact", true)
	for col, val := range filters {
		query = query.Eq(col, val)
	}

	_, count, err := query.Execute()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// activityRow is the internal representation of an activity_log row.
type activityRow struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	OriginID  string `json:"origin_id,omitempty"`
	Total     int    `json:"total"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RecordActivity appends a delivery audit record.
func (s *SupabaseStore) RecordActivity(ctx context.Context, entry notification.ActivityEntry) error {
	row := activityRow{
		ID:        uuid.New().String(),
		Kind:      string(entry.Kind),
		OriginID:  entry.OriginID,
		Total:     entry.Total,
		Sent:      entry.Sent,
		Failed:    entry.Failed,
		Skipped:   entry.Skipped,
		Detail:    entry.Detail,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	_, _, err := s.client.From(activityTable).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting activity record: %w", err)
	}
	return nil
}

// rowToDoctor converts a doctorRow to a DoctorDoc.
func rowToDoctor(row *doctorRow) *notification.DoctorDoc {
	return &notification.DoctorDoc{
		ID:                 row.ID,
		Name:               row.Name,
		Email:              row.Email,
		Specialization:     row.Specialization,
		VerificationStatus: row.VerificationStatus,
	}
}

// rowToCampaign converts a campaignRow to a CampaignDoc.
func rowToCampaign(row *campaignRow) *notification.CampaignDoc {
	doc := &notification.CampaignDoc{
		ID:      row.ID,
		Title:   row.Title,
		Content: row.Content,
		Status:  row.Status,
	}

	if row.Subject != nil {
		doc.Subject = *row.Subject
	}
	if row.Subtitle != nil {
		doc.Subtitle = *row.Subtitle
	}
	if row.CTAText != nil {
		doc.CTAText = *row.CTAText
	}
	if row.CTALink != nil {
		doc.CTALink = *row.CTALink
	}
	if row.RecipientCountAtSend != nil {
		doc.RecipientCountAtSend = *row.RecipientCountAtSend
	}
	if row.DueAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.DueAt); err == nil {
			doc.DueAt = &t
		}
	}

	return doc
}
