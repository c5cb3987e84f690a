package notification

import "context"

// Query restricts a subscription to documents matching a field filter.
// An empty StatusIn matches every document in the collection.
type Query struct {
	Collection Collection
	StatusIn   []string
}

// Matches reports whether a document status passes the query filter.
func (q Query) Matches(status string) bool {
	if len(q.StatusIn) == 0 {
		return true
	}
	for _, s := range q.StatusIn {
		if s == status {
			return true
		}
	}
	return false
}

// CancelFunc stops a subscription's delivery. After the returned event
// channel closes, no further events will be delivered.
type CancelFunc func()

// Feed defines the contract for the document store's change feed.
// Subscribe establishes a live stream of change events for one query; the
// channel closes after cancel is called (or ctx fails during establishment).
// Ordering is feed-delivery order within one subscription only.
// Implementations live in infra/feed/.
type Feed interface {
	Subscribe(ctx context.Context, q Query) (<-chan ChangeEvent, CancelFunc, error)
}
