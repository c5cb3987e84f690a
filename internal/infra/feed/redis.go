package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"medinotify/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.Feed = (*StreamFeed)(nil)

// StreamFeed implements the change feed over Redis Streams. The document
// store's change publisher appends one entry per change to a stream per
// collection (e.g. "changes:doctors"); each subscription tails its stream
// with blocking XRead from the tip, so delivery order within a subscription
// is stream order.
type StreamFeed struct {
	client *redis.Client
	prefix string
	block  time.Duration
}

// Config holds change feed settings.
type Config struct {
	StreamPrefix string
	Block        time.Duration
}

// NewStreamFeed creates a Redis Streams change feed.
func NewStreamFeed(redisAddr, password string, db int, cfg Config) *StreamFeed {
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "changes:"
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &StreamFeed{client: client, prefix: cfg.StreamPrefix, block: cfg.Block}
}

// Subscribe establishes a live tail of one collection's change stream.
// The returned channel closes after cancel is called; cancel itself does not
// block (the manager waits on channel close for the stop barrier).
func (f *StreamFeed) Subscribe(ctx context.Context, q notification.Query) (<-chan notification.ChangeEvent, notification.CancelFunc, error) {
	if q.Collection == "" {
		return nil, nil, fmt.Errorf("subscription query has no collection")
	}

	// Fail establishment here rather than inside the tail loop, so the
	// manager can report a dead feed instead of silently spinning.
	if err := f.client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("change feed unreachable: %w", err)
	}

	stream := f.prefix + string(q.Collection)
	runCtx, cancel := context.WithCancel(context.Background())
	out := make(chan notification.ChangeEvent, 16)

	go f.tail(runCtx, stream, q, out)

	return out, notification.CancelFunc(cancel), nil
}

// tail is the per-subscription read loop. It starts at the stream tip: a
// subscription observes changes from its start, recovery of older due work
// is the sweep's job, not the feed's.
func (f *StreamFeed) tail(ctx context.Context, stream string, q notification.Query, out chan<- notification.ChangeEvent) {
	defer close(out)

	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := f.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   64,
			Block:   f.block,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			slog.Warn("change feed read failed, retrying", "stream", stream, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, sr := range res {
			for _, msg := range sr.Messages {
				lastID = msg.ID

				ev, err := decodeEvent(q.Collection, msg.ID, msg.Values)
				if err != nil {
					slog.Warn("dropping undecodable change entry",
						"stream", stream,
						"entry_id", msg.ID,
						"error", err,
					)
					continue
				}
				if !q.Matches(docStatus(msg.Values)) {
					continue
				}

				select {
				case out <- *ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// decodeEvent turns one stream entry into a typed ChangeEvent. The document
// body is decoded exactly once here, into the variant for the collection.
func decodeEvent(col notification.Collection, entryID string, values map[string]any) (*notification.ChangeEvent, error) {
	docID := stringField(values, "id")
	if docID == "" {
		return nil, fmt.Errorf("entry has no document id")
	}

	changeType := notification.ChangeType(stringField(values, "type"))
	switch changeType {
	case notification.ChangeAdded, notification.ChangeModified, notification.ChangeRemoved:
	default:
		return nil, fmt.Errorf("unknown change type %q", changeType)
	}

	revision := stringField(values, "revision")
	if revision == "" {
		// The stream entry ID is monotonic per stream and unique per
		// delivery batch, which is exactly what dedup needs.
		revision = entryID
	}

	raw := []byte(stringField(values, "doc"))
	var doc any
	switch col {
	case notification.CollectionDoctors:
		d := &notification.DoctorDoc{}
		if err := json.Unmarshal(raw, d); err != nil {
			return nil, fmt.Errorf("decoding doctor document: %w", err)
		}
		doc = d
	case notification.CollectionUsers:
		u := &notification.UserDoc{}
		if err := json.Unmarshal(raw, u); err != nil {
			return nil, fmt.Errorf("decoding user document: %w", err)
		}
		doc = u
	case notification.CollectionCampaigns:
		cmp := &notification.CampaignDoc{}
		if err := json.Unmarshal(raw, cmp); err != nil {
			return nil, fmt.Errorf("decoding campaign document: %w", err)
		}
		doc = cmp
	default:
		return nil, fmt.Errorf("unknown collection %q", col)
	}

	return &notification.ChangeEvent{
		Collection: col,
		ID:         docID,
		Type:       changeType,
		Revision:   revision,
		Doc:        doc,
	}, nil
}

func docStatus(values map[string]any) string {
	return stringField(values, "status")
}

func stringField(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}

// Close closes the Redis connection.
func (f *StreamFeed) Close() error {
	return f.client.Close()
}
