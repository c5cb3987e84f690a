package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledCampaign(id string, due time.Time) *CampaignDoc {
	return &CampaignDoc{
		ID:      id,
		Title:   "September Checkups",
		Content: "<p>Book now</p>",
		Status:  CampaignScheduled,
		DueAt:   &due,
	}
}

// claimOnceStore lets exactly one claim per campaign succeed, mimicking the
// conditional status transition in the real store.
func claimOnceStore() *stubStore {
	store := newStubStore()
	var mu sync.Mutex
	claimed := make(map[string]bool)
	store.claimFunc = func(id string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if claimed[id] {
			return false, nil
		}
		claimed[id] = true
		return true, nil
	}
	store.promotionalFunc = func() ([]Recipient, error) {
		return recipients("a@x.io", "b@x.io"), nil
	}
	return store
}

func newTestGate(store *stubStore, sender *fakeSender) *CampaignGate {
	d := NewDispatcher(NewQuota(1000), sender, &fakeRenderer{}, nil, fastDispatchConfig(50))
	return NewCampaignGate(store, d, 20)
}

func TestCampaignGateDispatchesExactlyOnce(t *testing.T) {
	store := claimOnceStore()
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	doc := scheduledCampaign("c1", time.Now().Add(-time.Minute))
	ev := ChangeEvent{Collection: CollectionCampaigns, ID: "c1", Type: ChangeModified, Doc: doc}

	// Concurrent deliveries of the same due campaign
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.HandleEvent(context.Background(), ev)
		}()
	}
	wg.Wait()

	assert.Len(t, sender.sent(), 1)
	assert.Equal(t, 2, store.campaignSends["c1"])
}

func TestCampaignGateIgnoresFutureDue(t *testing.T) {
	store := claimOnceStore()
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	doc := scheduledCampaign("c1", time.Now().Add(time.Hour))
	gate.HandleEvent(context.Background(), ChangeEvent{Collection: CollectionCampaigns, ID: "c1", Doc: doc})

	assert.Empty(t, sender.sent())
}

func TestCampaignGateIgnoresNonScheduled(t *testing.T) {
	store := claimOnceStore()
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	due := time.Now().Add(-time.Minute)
	doc := scheduledCampaign("c1", due)
	doc.Status = CampaignSent
	gate.HandleEvent(context.Background(), ChangeEvent{Collection: CollectionCampaigns, ID: "c1", Doc: doc})

	doc2 := scheduledCampaign("c2", due)
	doc2.Status = CampaignDraft
	gate.HandleEvent(context.Background(), ChangeEvent{Collection: CollectionCampaigns, ID: "c2", Doc: doc2})

	assert.Empty(t, sender.sent())
}

func TestCampaignGateIgnoresMissingDue(t *testing.T) {
	store := claimOnceStore()
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	doc := &CampaignDoc{ID: "c1", Title: "T", Content: "x", Status: CampaignScheduled}
	gate.HandleEvent(context.Background(), ChangeEvent{Collection: CollectionCampaigns, ID: "c1", Doc: doc})

	assert.Empty(t, sender.sent())
}

func TestCampaignSweepBroadcastsDue(t *testing.T) {
	store := claimOnceStore()
	store.listDueFunc = func(dueBefore time.Time, limit int) ([]*CampaignDoc, error) {
		return []*CampaignDoc{
			scheduledCampaign("c1", time.Now().Add(-time.Hour)),
			scheduledCampaign("c2", time.Now().Add(-time.Minute)),
		}, nil
	}
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	require.NoError(t, gate.Sweep(context.Background()))
	assert.Len(t, sender.sent(), 2)

	// A second sweep finds the claims already taken
	require.NoError(t, gate.Sweep(context.Background()))
	assert.Len(t, sender.sent(), 2)
}

func TestCampaignForceSendSkipsGuard(t *testing.T) {
	store := claimOnceStore()
	store.campaignFunc = func(id string) (*CampaignDoc, error) {
		doc := scheduledCampaign(id, time.Now().Add(-time.Minute))
		doc.Status = CampaignSent
		return doc, nil
	}
	sender := &fakeSender{}
	gate := newTestGate(store, sender)

	summary, err := gate.ForceSend(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
	assert.Len(t, sender.sent(), 1)
}

func TestCampaignIntentSubjectFallsBackToTitle(t *testing.T) {
	doc := scheduledCampaign("c1", time.Now())
	intent := campaignIntent(doc, recipients("a@x.io"))
	assert.Equal(t, "September Checkups", intent.Data["Subject"])
	assert.True(t, intent.Bulk)

	doc.Subject = "Custom Subject"
	intent = campaignIntent(doc, recipients("a@x.io"))
	assert.Equal(t, "Custom Subject", intent.Data["Subject"])
}
