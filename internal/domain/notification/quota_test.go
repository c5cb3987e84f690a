package notification

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaGrantsWithinLimit(t *testing.T) {
	q := NewQuota(10)

	assert.Equal(t, 4, q.TryConsume(4))
	assert.Equal(t, 6, q.Remaining())

	// Partial grant when the request exceeds what remains
	assert.Equal(t, 6, q.TryConsume(8))
	assert.Equal(t, 0, q.Remaining())

	// Exhausted quota grants nothing
	assert.Equal(t, 0, q.TryConsume(1))
}

func TestQuotaRejectsNonPositive(t *testing.T) {
	q := NewQuota(10)

	assert.Equal(t, 0, q.TryConsume(0))
	assert.Equal(t, 0, q.TryConsume(-3))
	assert.Equal(t, 10, q.Remaining())
}

func TestQuotaReset(t *testing.T) {
	q := NewQuota(5)
	require.Equal(t, 5, q.TryConsume(5))
	require.Equal(t, 0, q.Remaining())

	q.Reset()

	assert.Equal(t, 5, q.Remaining())
	view := q.View()
	assert.Equal(t, 0, view.SentToday)
	assert.Equal(t, 5, view.DailyLimit)
	assert.Equal(t, 5, view.Remaining)
}

func TestQuotaNeverOverGrantsConcurrently(t *testing.T) {
	const limit = 10
	q := NewQuota(limit)

	var wg sync.WaitGroup
	grants := make(chan int, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			grants <- q.TryConsume(1)
		}()
	}
	wg.Wait()
	close(grants)

	total := 0
	for g := range grants {
		total += g
	}

	assert.Equal(t, limit, total)
	assert.Equal(t, 0, q.Remaining())
}

func TestQuotaDefaultsLimit(t *testing.T) {
	q := NewQuota(0)
	assert.Equal(t, 100, q.Remaining())
}
