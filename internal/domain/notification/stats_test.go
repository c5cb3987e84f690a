package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterSnapshot(t *testing.T) {
	quota := NewQuota(100)
	quota.TryConsume(30)

	store := newStubStore()
	store.countsFunc = func() (*StoreCounts, error) {
		return &StoreCounts{
			Doctors: DoctorCounts{Total: 5, Approved: 3},
			Users:   UserCounts{Total: 40, EmailVerified: 35},
		}, nil
	}

	diags := &Diagnostics{}
	diags.recordDuplicate()

	r := NewReporter(quota, NewManager(newFakeFeed()), diags, store)
	snap := r.Snapshot(context.Background())

	assert.False(t, snap.Timestamp.IsZero())
	assert.Equal(t, 30, snap.Quota.SentToday)
	assert.Equal(t, 70, snap.Quota.Remaining)
	assert.Equal(t, 1, snap.Classifier.Duplicates)
	require.NotNil(t, snap.Store)
	assert.Equal(t, 5, snap.Store.Doctors.Total)
	assert.Empty(t, snap.Error)
}

func TestReporterDegradesWhenStoreFails(t *testing.T) {
	store := newStubStore()
	store.countsFunc = func() (*StoreCounts, error) {
		return nil, errors.New("connection refused")
	}

	r := NewReporter(NewQuota(100), NewManager(newFakeFeed()), &Diagnostics{}, store)
	snap := r.Snapshot(context.Background())

	// The snapshot stays usable; only the store section is missing
	assert.Nil(t, snap.Store)
	assert.Equal(t, "connection refused", snap.Error)
	assert.Equal(t, 100, snap.Quota.DailyLimit)
}

func TestReporterWithoutStore(t *testing.T) {
	r := NewReporter(NewQuota(100), NewManager(newFakeFeed()), &Diagnostics{}, nil)
	snap := r.Snapshot(context.Background())

	assert.Nil(t, snap.Store)
	assert.Equal(t, "document store is not configured", snap.Error)
}
