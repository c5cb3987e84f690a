package notification

import (
	"context"
	"log/slog"
	"time"
)

// Snapshot is the single read-model backing the stats and health surfaces.
type Snapshot struct {
	Timestamp     time.Time       `json:"timestamp"`
	Quota         QuotaView       `json:"quota"`
	Subscriptions ManagerStatus   `json:"subscriptions"`
	Classifier    DiagnosticsView `json:"classifier"`
	Store         *StoreCounts    `json:"store,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Reporter aggregates quota state, subscription liveness, classifier
// diagnostics, and store-derived counts into one snapshot. It is a pure
// read: a failing store degrades the snapshot (Error set, counts omitted)
// instead of failing the call, since this backs a health-check surface that
// must stay responsive when the store is down.
type Reporter struct {
	quota   *Quota
	manager *Manager
	diags   *Diagnostics
	store   DocumentStore
}

// NewReporter creates a stats reporter.
func NewReporter(quota *Quota, manager *Manager, diags *Diagnostics, store DocumentStore) *Reporter {
	return &Reporter{quota: quota, manager: manager, diags: diags, store: store}
}

// Snapshot assembles the current read-model. It never returns an error.
func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{
		Timestamp:     time.Now().UTC(),
		Quota:         r.quota.View(),
		Subscriptions: r.manager.Status(),
		Classifier:    r.diags.View(),
	}

	if r.store == nil {
		snap.Error = "document store is not configured"
		return snap
	}

	counts, err := r.store.Counts(ctx)
	if err != nil {
		slog.Error("stats snapshot degraded, store unreachable", "error", err)
		snap.Error = err.Error()
		return snap
	}
	snap.Store = counts

	return snap
}
