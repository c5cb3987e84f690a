package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Diagnostics counts classifier skips for the stats surface. Classification
// never raises on bad data; it records why it declined instead.
type Diagnostics struct {
	mu         sync.Mutex
	malformed  int
	duplicates int
	seenErrors int
	lastReason string
}

// DiagnosticsView is a point-in-time snapshot of classifier diagnostics.
type DiagnosticsView struct {
	Malformed  int    `json:"malformed"`
	Duplicates int    `json:"duplicates"`
	SeenErrors int    `json:"seen_errors"`
	LastReason string `json:"last_reason,omitempty"`
}

func (d *Diagnostics) recordMalformed(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.malformed++
	d.lastReason = reason
}

func (d *Diagnostics) recordDuplicate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.duplicates++
}

func (d *Diagnostics) recordSeenError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seenErrors++
}

// View returns the current diagnostic counters.
func (d *Diagnostics) View() DiagnosticsView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DiagnosticsView{
		Malformed:  d.malformed,
		Duplicates: d.duplicates,
		SeenErrors: d.seenErrors,
		LastReason: d.lastReason,
	}
}

// Classifier filters change events down to the transitions that matter and
// produces notification intents. It is idempotent against redelivery of the
// same underlying change: emission is keyed on (document, status, revision)
// through the SeenStore, so a status that flips away and back only fires
// again when the revision differs.
type Classifier struct {
	seen  SeenStore
	diags *Diagnostics
}

// NewClassifier creates a classifier backed by the given dedup store.
func NewClassifier(seen SeenStore, diags *Diagnostics) *Classifier {
	if diags == nil {
		diags = &Diagnostics{}
	}
	return &Classifier{seen: seen, diags: diags}
}

// Diagnostics exposes the classifier's skip counters.
func (c *Classifier) Diagnostics() *Diagnostics {
	return c.diags
}

// Classify maps one change event to at most one notification intent.
// It returns nil when the event is not a matching transition, is a
// redelivery, or carries a malformed document.
func (c *Classifier) Classify(ctx context.Context, ev ChangeEvent) *Intent {
	switch doc := ev.Doc.(type) {
	case *DoctorDoc:
		return c.classifyDoctor(ctx, ev, doc)
	case *UserDoc:
		return c.classifyUser(ctx, ev, doc)
	default:
		c.diags.recordMalformed(fmt.Sprintf("unexpected document variant for %s/%s", ev.Collection, ev.ID))
		return nil
	}
}

// classifyDoctor fires on a verification decision: a modified doctor whose
// status moved into approved or rejected.
func (c *Classifier) classifyDoctor(ctx context.Context, ev ChangeEvent, doc *DoctorDoc) *Intent {
	if ev.Type != ChangeModified {
		return nil
	}

	var kind Kind
	switch doc.VerificationStatus {
	case VerificationApproved:
		kind = KindDoctorApproved
	case VerificationRejected:
		kind = KindDoctorRejected
	default:
		return nil
	}

	if doc.Email == "" {
		c.diags.recordMalformed(fmt.Sprintf("doctor %s has no email address", ev.ID))
		slog.Warn("skipping doctor verification notification", "document_id", ev.ID, "reason", "missing email")
		return nil
	}

	key := dedupKey(ev.Collection, ev.ID, doc.VerificationStatus, ev.Revision)
	if !c.firstObservation(ctx, key) {
		return nil
	}

	return &Intent{
		Kind:     kind,
		OriginID: ev.ID,
		Recipients: []Recipient{{
			Address: doc.Email,
			Name:    doc.Name,
		}},
		Data: map[string]any{
			"Name":           doc.Name,
			"Specialization": doc.Specialization,
			"Status":         doc.VerificationStatus,
		},
	}
}

// classifyUser fires a welcome message for a newly added verified user.
func (c *Classifier) classifyUser(ctx context.Context, ev ChangeEvent, doc *UserDoc) *Intent {
	if ev.Type != ChangeAdded || !doc.EmailVerified {
		return nil
	}

	if doc.Email == "" {
		c.diags.recordMalformed(fmt.Sprintf("user %s has no email address", ev.ID))
		slog.Warn("skipping welcome notification", "document_id", ev.ID, "reason", "missing email")
		return nil
	}

	key := dedupKey(ev.Collection, ev.ID, "welcome", ev.Revision)
	if !c.firstObservation(ctx, key) {
		return nil
	}

	return &Intent{
		Kind:     KindWelcome,
		OriginID: ev.ID,
		Recipients: []Recipient{{
			Address: doc.Email,
			Name:    doc.FirstName,
			UserID:  doc.ID,
		}},
		Data: map[string]any{
			"Name": doc.FirstName,
		},
	}
}

// firstObservation consults the dedup store. Store errors fail open: a
// degraded dedup store should delay duplicates, not suppress notifications.
func (c *Classifier) firstObservation(ctx context.Context, key string) bool {
	first, err := c.seen.FirstObservation(ctx, key)
	if err != nil {
		c.diags.recordSeenError()
		slog.Error("dedup check failed, proceeding without dedup", "key", key, "error", err)
		return true
	}
	if !first {
		c.diags.recordDuplicate()
	}
	return first
}

func dedupKey(col Collection, id, status, revision string) string {
	return fmt.Sprintf("%s/%s/%s/%s", col, id, status, revision)
}
