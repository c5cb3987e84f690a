package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medinotify/internal/common"
)

// CampaignGate drives time-scheduled broadcasts. It compares a campaign's
// due time against the wall clock and enforces single execution through a
// conditional store transition: only the invocation that wins the
// scheduled→sent flip dispatches, so concurrent deliveries of the same feed
// event cannot re-broadcast. A dispatch failure after the flip is reported
// but never rolled back; operators use the manual send path to fill gaps.
type CampaignGate struct {
	store      DocumentStore
	dispatcher *Dispatcher
	sweepBatch int
	now        func() time.Time
}

// NewCampaignGate creates a campaign gate.
func NewCampaignGate(store DocumentStore, dispatcher *Dispatcher, sweepBatch int) *CampaignGate {
	if sweepBatch <= 0 {
		sweepBatch = 20
	}
	return &CampaignGate{
		store:      store,
		dispatcher: dispatcher,
		sweepBatch: sweepBatch,
		now:        time.Now,
	}
}

// HandleEvent is the subscription handler for the campaigns collection.
func (g *CampaignGate) HandleEvent(ctx context.Context, ev ChangeEvent) {
	doc, ok := ev.Doc.(*CampaignDoc)
	if !ok {
		slog.Warn("campaign event carries unexpected document variant", "document_id", ev.ID)
		return
	}
	if err := g.execute(ctx, doc); err != nil {
		slog.Error("campaign execution failed", "campaign_id", doc.ID, "error", err)
	}
}

// execute runs the gate for one observed campaign document.
func (g *CampaignGate) execute(ctx context.Context, doc *CampaignDoc) error {
	if g.store == nil {
		return common.NewNotConfiguredError("document store")
	}
	if doc.Status != CampaignScheduled {
		return nil
	}
	if doc.DueAt == nil || doc.DueAt.After(g.now()) {
		return nil
	}

	claimed, err := g.store.ClaimScheduledCampaign(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("claiming campaign: %w", err)
	}
	if !claimed {
		// Another invocation won the transition, or the campaign was
		// already sent. Either way this delivery is a no-op.
		return nil
	}

	recipients, err := g.store.PromotionalRecipients(ctx)
	if err != nil {
		// The status flip stands; only the gap is reported.
		return fmt.Errorf("resolving campaign recipients: %w", err)
	}

	slog.Info("campaign due, broadcasting",
		"campaign_id", doc.ID,
		"title", doc.Title,
		"recipients", len(recipients),
	)

	if len(recipients) > 0 {
		outcomes, err := g.dispatcher.Dispatch(ctx, campaignIntent(doc, recipients))
		if err != nil {
			return fmt.Errorf("dispatching campaign: %w", err)
		}
		s := Summarize(outcomes)
		if s.Failed > 0 {
			slog.Warn("campaign dispatched with failures",
				"campaign_id", doc.ID,
				"sent", s.Sent,
				"failed", s.Failed,
				"skipped", s.Skipped,
			)
		}
	}

	if err := g.store.RecordCampaignSend(ctx, doc.ID, len(recipients)); err != nil {
		slog.Error("recording campaign recipient count failed", "campaign_id", doc.ID, "error", err)
	}

	return nil
}

// Sweep reconciles the store with the clock: it claims and broadcasts every
// scheduled campaign whose due time passed without a feed event (missed
// deliveries, restarts). The store is the source of truth; the conditional
// claim keeps the sweep and the feed path from double-sending.
func (g *CampaignGate) Sweep(ctx context.Context) error {
	if g.store == nil {
		return common.NewNotConfiguredError("document store")
	}
	due, err := g.store.ListDueCampaigns(ctx, g.now(), g.sweepBatch)
	if err != nil {
		return fmt.Errorf("listing due campaigns: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	slog.Info("campaign sweep found due campaigns", "count", len(due))

	for _, doc := range due {
		if err := g.execute(ctx, doc); err != nil {
			slog.Error("campaign sweep execution failed", "campaign_id", doc.ID, "error", err)
		}
	}
	return nil
}

// ForceSend is the operator's manual-retry path: it broadcasts a campaign to
// the current promotional recipient set without the scheduled-status guard.
// Used to fill delivery gaps after a post-flip dispatch failure.
func (g *CampaignGate) ForceSend(ctx context.Context, campaignID string) (*Summary, error) {
	if g.store == nil {
		return nil, common.NewNotConfiguredError("document store")
	}
	doc, err := g.store.Campaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("fetching campaign: %w", err)
	}

	recipients, err := g.store.PromotionalRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving campaign recipients: %w", err)
	}
	if len(recipients) == 0 {
		return &Summary{}, nil
	}

	outcomes, err := g.dispatcher.Dispatch(ctx, campaignIntent(doc, recipients))
	if err != nil {
		return nil, err
	}
	s := Summarize(outcomes)
	return &s, nil
}

func campaignIntent(doc *CampaignDoc, recipients []Recipient) *Intent {
	subject := doc.Subject
	if subject == "" {
		subject = doc.Title
	}
	return &Intent{
		Kind:       KindCampaign,
		OriginID:   doc.ID,
		Recipients: recipients,
		Bulk:       true,
		Data: map[string]any{
			"Subject":  subject,
			"Title":    doc.Title,
			"Subtitle": doc.Subtitle,
			"Content":  doc.Content,
			"CTAText":  doc.CTAText,
			"CTALink":  doc.CTALink,
		},
	}
}
