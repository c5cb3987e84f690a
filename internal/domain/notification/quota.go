package notification

import "sync"

// Quota tracks the rolling count of sends against a daily cap. It is the one
// piece of shared mutable state across all concurrent dispatch paths: every
// admission check and increment happens inside a single critical section, so
// two concurrent TryConsume calls can never jointly overshoot the limit.
type Quota struct {
	mu         sync.Mutex
	sentToday  int
	dailyLimit int
}

// QuotaView is a point-in-time snapshot of the quota state.
type QuotaView struct {
	SentToday  int `json:"sent_today"`
	DailyLimit int `json:"daily_limit"`
	Remaining  int `json:"remaining"`
}

// NewQuota creates a quota tracker with the given daily limit.
func NewQuota(dailyLimit int) *Quota {
	if dailyLimit <= 0 {
		dailyLimit = 100
	}
	return &Quota{dailyLimit: dailyLimit}
}

// TryConsume atomically grants up to n send slots, clamped to what remains of
// the daily limit, and records the grant. Callers treat granted < n as
// partial admission: the shortfall is skipped, not an error.
func (q *Quota) TryConsume(n int) int {
	if n <= 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	granted := q.dailyLimit - q.sentToday
	if granted <= 0 {
		return 0
	}
	if granted > n {
		granted = n
	}
	q.sentToday += granted
	return granted
}

// Remaining returns how many sends are still admissible today.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dailyLimit - q.sentToday
}

// Reset zeroes the daily counter. Invoked by the scheduled maintenance task
// and by the administrative reset endpoint.
func (q *Quota) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sentToday = 0
}

// View returns the current quota state.
func (q *Quota) View() QuotaView {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QuotaView{
		SentToday:  q.sentToday,
		DailyLimit: q.dailyLimit,
		Remaining:  q.dailyLimit - q.sentToday,
	}
}
