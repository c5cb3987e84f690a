package notification

import (
	"context"
	"fmt"
	"log/slog"

	"medinotify/internal/common"
)

// Service carries the manual administrative operations: operator-triggered
// sends and user preference pass-throughs. The event-driven path goes through
// the classifier and campaign gate instead.
type Service struct {
	store      DocumentStore
	dispatcher *Dispatcher
	gate       *CampaignGate
}

// NewService creates the administrative service.
func NewService(store DocumentStore, dispatcher *Dispatcher, gate *CampaignGate) *Service {
	return &Service{store: store, dispatcher: dispatcher, gate: gate}
}

// requireStore guards store-backed operations when the document store is
// not wired at startup.
func (s *Service) requireStore() error {
	if s.store == nil {
		return common.NewNotConfiguredError("document store")
	}
	return nil
}

// SendDoctorVerification manually delivers a verification decision to a
// doctor, records the decision on the document, and logs the activity.
func (s *Service) SendDoctorVerification(ctx context.Context, doctorID, status, adminID string) (*Summary, error) {
	if status != VerificationApproved && status != VerificationRejected {
		return nil, common.NewValidationError("status must be either \"approved\" or \"rejected\"")
	}
	if err := s.requireStore(); err != nil {
		return nil, err
	}

	doc, err := s.store.Doctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("fetching doctor: %w", err)
	}
	if doc.Email == "" {
		return nil, common.NewValidationError(fmt.Sprintf("doctor %s has no email address", doctorID))
	}

	kind := KindDoctorApproved
	if status == VerificationRejected {
		kind = KindDoctorRejected
	}

	outcomes, err := s.dispatcher.Dispatch(ctx, &Intent{
		Kind:       kind,
		OriginID:   doctorID,
		Recipients: []Recipient{{Address: doc.Email, Name: doc.Name}},
		Data: map[string]any{
			"Name":           doc.Name,
			"Specialization": doc.Specialization,
			"Status":         status,
		},
	})
	if err != nil {
		return nil, err
	}

	if adminID != "" {
		if err := s.store.UpdateDoctorVerification(ctx, doctorID, status, adminID); err != nil {
			slog.Error("updating doctor verification failed",
				"doctor_id", doctorID,
				"status", status,
				"error", err,
			)
		}
	}

	summary := Summarize(outcomes)
	return &summary, nil
}

// SendCampaign is the operator manual-retry path for a campaign broadcast.
func (s *Service) SendCampaign(ctx context.Context, campaignID string) (*Summary, error) {
	if campaignID == "" {
		return nil, common.NewValidationError("campaign_id is required")
	}
	return s.gate.ForceSend(ctx, campaignID)
}

// HealthTip is an operator-authored newsletter.
type HealthTip struct {
	Title       string   `json:"title" binding:"required"`
	Content     string   `json:"content" binding:"required"`
	ActionItems []string `json:"action_items"`
}

// SendHealthTip broadcasts a health tip to every opted-in verified user.
func (s *Service) SendHealthTip(ctx context.Context, tip *HealthTip) (*Summary, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	recipients, err := s.store.HealthTipRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving health tip recipients: %w", err)
	}
	if len(recipients) == 0 {
		return &Summary{}, nil
	}

	outcomes, err := s.dispatcher.Dispatch(ctx, &Intent{
		Kind:       KindHealthTip,
		Recipients: recipients,
		Bulk:       true,
		Data: map[string]any{
			"Subject":     fmt.Sprintf("Health Tip: %s", tip.Title),
			"Title":       tip.Title,
			"Content":     tip.Content,
			"ActionItems": tip.ActionItems,
		},
	})
	if err != nil {
		return nil, err
	}

	summary := Summarize(outcomes)
	return &summary, nil
}

// SendTest delivers a test message to verify gateway configuration.
func (s *Service) SendTest(ctx context.Context, address string) (*Summary, error) {
	if address == "" {
		return nil, common.NewValidationError("email address is required")
	}

	outcomes, err := s.dispatcher.Dispatch(ctx, &Intent{
		Kind:       KindTest,
		Recipients: []Recipient{{Address: address}},
	})
	if err != nil {
		return nil, err
	}

	summary := Summarize(outcomes)
	return &summary, nil
}

// Preferences retrieves a user's email opt-in flags.
func (s *Service) Preferences(ctx context.Context, userID string) (*EmailPreferences, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	prefs, err := s.store.UserPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching preferences: %w", err)
	}
	return prefs, nil
}

// UpdatePreferences replaces a user's email opt-in flags.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs EmailPreferences) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.store.UpdateUserPreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	slog.Info("email preferences updated", "user_id", userID)
	return nil
}

// Unsubscribe clears every opt-in flag for a user.
func (s *Service) Unsubscribe(ctx context.Context, userID string) error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if err := s.store.UnsubscribeUser(ctx, userID); err != nil {
		return fmt.Errorf("unsubscribing user: %w", err)
	}
	slog.Info("user unsubscribed from all messages", "user_id", userID)
	return nil
}
