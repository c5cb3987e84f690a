package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medinotify/internal/common"

	"golang.org/x/time/rate"
)

const skipReasonQuota = "daily limit reached"

// DispatcherConfig holds dispatch pipeline settings.
type DispatcherConfig struct {
	// BulkBatchSize is the gateway call size for bulk intents.
	// Interactive intents always use batch size 1.
	BulkBatchSize int

	// SinglePerSecond paces successive single-recipient sends.
	SinglePerSecond float64

	// BulkBatchesPerSecond paces successive bulk gateway calls.
	BulkBatchesPerSecond float64

	// SendTimeout bounds each gateway call.
	SendTimeout time.Duration
}

// Dispatcher turns a notification intent into gateway calls: it partitions
// recipients into batches, admits each batch against the shared daily quota,
// paces successive sends, and isolates per-batch gateway failures so one bad
// address never sinks the rest of a campaign.
type Dispatcher struct {
	quota       *Quota
	sender      Sender
	renderer    Renderer
	store       DocumentStore
	bulkBatch   int
	singlePace  *rate.Limiter
	bulkPace    *rate.Limiter
	sendTimeout time.Duration
}

// NewDispatcher creates a dispatch pipeline. sender may be nil when the
// gateway is unconfigured; dispatch then fails fast instead of half-working.
// store may be nil to disable activity logging.
func NewDispatcher(quota *Quota, sender Sender, renderer Renderer, store DocumentStore, cfg DispatcherConfig) *Dispatcher {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 50
	}
	if cfg.SinglePerSecond <= 0 {
		cfg.SinglePerSecond = 5
	}
	if cfg.BulkBatchesPerSecond <= 0 {
		cfg.BulkBatchesPerSecond = 0.5
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		quota:       quota,
		sender:      sender,
		renderer:    renderer,
		store:       store,
		bulkBatch:   cfg.BulkBatchSize,
		singlePace:  rate.NewLimiter(rate.Limit(cfg.SinglePerSecond), 1),
		bulkPace:    rate.NewLimiter(rate.Limit(cfg.BulkBatchesPerSecond), 1),
		sendTimeout: cfg.SendTimeout,
	}
}

// Dispatch drives one intent through admission, rendering, and delivery.
// It returns one outcome per recipient. The only error return is the
// fail-fast path for single-unit intents against an unconfigured gateway;
// every other failure is recorded per recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, intent *Intent) ([]Outcome, error) {
	if !IsValidKind(intent.Kind) {
		return nil, common.NewValidationError(fmt.Sprintf("unsupported notification kind: %s", intent.Kind))
	}
	if len(intent.Recipients) == 0 {
		return nil, nil
	}

	if d.sender == nil {
		if !intent.Bulk {
			return nil, common.NewNotConfiguredError("email gateway")
		}
		return d.finish(ctx, intent, failAll(intent.Recipients, "email gateway is not configured")), nil
	}

	start := time.Now()
	batchSize := 1
	pace := d.singlePace
	if intent.Bulk {
		batchSize = d.bulkBatch
		pace = d.bulkPace
	}

	outcomes := make([]Outcome, 0, len(intent.Recipients))
	exhausted := false
	sentAny := false

	for lo := 0; lo < len(intent.Recipients); lo += batchSize {
		hi := lo + batchSize
		if hi > len(intent.Recipients) {
			hi = len(intent.Recipients)
		}
		batch := intent.Recipients[lo:hi]

		// Once the quota runs dry no further admission attempts are made.
		if exhausted || d.quota.Remaining() == 0 {
			exhausted = true
			outcomes = append(outcomes, skipAll(batch, skipReasonQuota)...)
			continue
		}

		granted := d.quota.TryConsume(len(batch))
		admitted, tail := batch[:granted], batch[granted:]
		if granted < len(batch) {
			exhausted = true
		}
		if granted == 0 {
			outcomes = append(outcomes, skipAll(tail, skipReasonQuota)...)
			continue
		}

		// Cooperative pacing between successive sends. Deliberately not tied
		// to ctx: the delay is short and bounded, and an admitted batch runs
		// to completion.
		if sentAny {
			_ = pace.Wait(context.Background())
		}
		sentAny = true

		outcomes = append(outcomes, d.sendBatch(ctx, intent, admitted)...)
		outcomes = append(outcomes, skipAll(tail, skipReasonQuota)...)
	}

	summary := Summarize(outcomes)
	slog.Info("intent dispatched",
		"kind", intent.Kind,
		"origin_id", intent.OriginID,
		"total", summary.Total,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", time.Since(start),
	)

	return d.finish(ctx, intent, outcomes), nil
}

// sendBatch renders and delivers one admitted batch. Gateway failures are
// recorded per recipient and never abort subsequent batches.
func (d *Dispatcher) sendBatch(ctx context.Context, intent *Intent, admitted []Recipient) []Outcome {
	subject, html, text, err := d.renderer.Render(intent.Kind, renderData(intent, admitted))
	if err != nil {
		return failAll(admitted, fmt.Sprintf("rendering message: %s", err.Error()))
	}

	msg := &Message{Subject: subject, HTML: html, Text: text}
	for _, r := range admitted {
		if intent.Bulk {
			msg.Bcc = append(msg.Bcc, r.Address)
		} else {
			msg.To = append(msg.To, r.Address)
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	providerID, err := d.sender.Send(sendCtx, msg)
	if err != nil {
		slog.Error("gateway send failed",
			"kind", intent.Kind,
			"origin_id", intent.OriginID,
			"recipients", len(admitted),
			"error", err,
		)
		return failAll(admitted, err.Error())
	}

	outcomes := make([]Outcome, 0, len(admitted))
	for _, r := range admitted {
		outcomes = append(outcomes, Outcome{Recipient: r, Status: OutcomeSent, ProviderID: providerID})
	}
	return outcomes
}

// finish records the delivery audit entry and returns the outcomes.
func (d *Dispatcher) finish(ctx context.Context, intent *Intent, outcomes []Outcome) []Outcome {
	if d.store == nil || len(outcomes) == 0 {
		return outcomes
	}

	s := Summarize(outcomes)
	entry := ActivityEntry{
		Kind:     intent.Kind,
		OriginID: intent.OriginID,
		Total:    s.Total,
		Sent:     s.Sent,
		Failed:   s.Failed,
		Skipped:  s.Skipped,
	}
	if err := d.store.RecordActivity(ctx, entry); err != nil {
		slog.Error("recording delivery activity failed", "kind", intent.Kind, "error", err)
	}
	return outcomes
}

// renderData builds the template data for one batch. Single-recipient sends
// get per-recipient personalization; bulk batches render once.
func renderData(intent *Intent, admitted []Recipient) map[string]any {
	data := make(map[string]any, len(intent.Data)+2)
	for k, v := range intent.Data {
		data[k] = v
	}
	if !intent.Bulk && len(admitted) == 1 {
		data["Name"] = admitted[0].Name
		if admitted[0].UserID != "" {
			data["UserID"] = admitted[0].UserID
		}
	}
	return data
}

func skipAll(recipients []Recipient, reason string) []Outcome {
	outcomes := make([]Outcome, 0, len(recipients))
	for _, r := range recipients {
		outcomes = append(outcomes, Outcome{Recipient: r, Status: OutcomeSkipped, Reason: reason})
	}
	return outcomes
}

func failAll(recipients []Recipient, reason string) []Outcome {
	outcomes := make([]Outcome, 0, len(recipients))
	for _, r := range recipients {
		outcomes = append(outcomes, Outcome{Recipient: r, Status: OutcomeFailed, Reason: reason})
	}
	return outcomes
}
