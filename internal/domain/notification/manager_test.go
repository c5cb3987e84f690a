package notification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDeliversEvents(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	var handled atomic.Int32
	def := SubscriptionDef{
		Name:  "doctors",
		Query: Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {
			handled.Add(1)
		},
	}
	require.NoError(t, m.Start(context.Background(), []SubscriptionDef{def}))

	ch := feed.channel(CollectionDoctors)
	require.NotNil(t, ch)
	ch <- ChangeEvent{Collection: CollectionDoctors, ID: "d1"}
	ch <- ChangeEvent{Collection: CollectionDoctors, ID: "d2"}

	assert.Eventually(t, func() bool {
		return handled.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestManagerStopAllIsABarrier(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	var handled atomic.Int32
	def := SubscriptionDef{
		Name:  "doctors",
		Query: Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {
			time.Sleep(20 * time.Millisecond)
			handled.Add(1)
		},
	}
	require.NoError(t, m.Start(context.Background(), []SubscriptionDef{def}))

	ch := feed.channel(CollectionDoctors)
	ch <- ChangeEvent{Collection: CollectionDoctors, ID: "d1"}

	m.StopAll()

	// In-flight delivery completed before StopAll returned
	assert.Equal(t, int32(1), handled.Load())
	assert.Equal(t, 0, m.Status().Active)

	// The subscription channel is closed: no event can reach the handler
	// after the barrier
	requireAllClosed(t, feed)
	after := handled.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, handled.Load())
}

// requireAllClosed asserts every channel the feed ever handed out is closed,
// meaning every subscription's cancel ran and none leaked past StopAll.
func requireAllClosed(t *testing.T, feed *fakeFeed) {
	t.Helper()
	for _, ch := range feed.allChannels() {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "subscription channel delivered instead of closing")
		default:
			t.Fatal("subscription channel still open after StopAll")
		}
	}
}

func TestManagerConcurrentStartReplacesInsteadOfStacking(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	var handled atomic.Int32
	def := SubscriptionDef{
		Name:  "doctors",
		Query: Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {
			handled.Add(1)
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Start(context.Background(), []SubscriptionDef{def})
		}()
	}
	wg.Wait()

	// Racing Starts with the same name leave exactly one live subscription
	status := m.Status()
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, []string{"doctors"}, status.Names)

	m.StopAll()
	assert.Equal(t, 0, m.Status().Active)

	// Every channel from every Subscribe call is closed, so no consumer
	// from a losing Start survives the barrier
	requireAllClosed(t, feed)

	after := handled.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, handled.Load())
}

func TestManagerDuplicateNameReplaces(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	def := SubscriptionDef{
		Name:   "doctors",
		Query:  Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {},
	}
	require.NoError(t, m.Start(context.Background(), []SubscriptionDef{def}))
	require.NoError(t, m.Start(context.Background(), []SubscriptionDef{def}))

	status := m.Status()
	assert.Equal(t, 1, status.Active)
	assert.Equal(t, []string{"doctors"}, status.Names)
}

func TestManagerStatusPreservesStartOrder(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	defs := []SubscriptionDef{
		{Name: "doctors", Query: Query{Collection: CollectionDoctors}, Handle: func(ctx context.Context, ev ChangeEvent) {}},
		{Name: "users", Query: Query{Collection: CollectionUsers}, Handle: func(ctx context.Context, ev ChangeEvent) {}},
		{Name: "campaigns", Query: Query{Collection: CollectionCampaigns}, Handle: func(ctx context.Context, ev ChangeEvent) {}},
	}
	require.NoError(t, m.Start(context.Background(), defs))

	assert.Equal(t, []string{"doctors", "users", "campaigns"}, m.Status().Names)
}

func TestManagerJoinsEstablishmentFailures(t *testing.T) {
	feed := newFakeFeed()
	feed.subErr = errors.New("feed unreachable")
	m := NewManager(feed)

	def := SubscriptionDef{
		Name:   "doctors",
		Query:  Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {},
	}
	err := m.Start(context.Background(), []SubscriptionDef{def})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doctors")
	assert.Equal(t, 0, m.Status().Active)
}

func TestManagerRejectsInvalidDefinition(t *testing.T) {
	m := NewManager(newFakeFeed())

	err := m.Start(context.Background(), []SubscriptionDef{{Name: ""}})
	require.Error(t, err)
}

func TestManagerContainsHandlerPanics(t *testing.T) {
	feed := newFakeFeed()
	m := NewManager(feed)

	var handled atomic.Int32
	def := SubscriptionDef{
		Name:  "doctors",
		Query: Query{Collection: CollectionDoctors},
		Handle: func(ctx context.Context, ev ChangeEvent) {
			if handled.Add(1) == 1 {
				panic("boom")
			}
		},
	}
	require.NoError(t, m.Start(context.Background(), []SubscriptionDef{def}))

	ch := feed.channel(CollectionDoctors)
	ch <- ChangeEvent{Collection: CollectionDoctors, ID: "d1"}
	ch <- ChangeEvent{Collection: CollectionDoctors, ID: "d2"}

	// The panic on the first event does not kill the consumer loop
	assert.Eventually(t, func() bool {
		return handled.Load() == 2
	}, time.Second, 5*time.Millisecond)
}
