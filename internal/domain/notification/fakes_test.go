package notification

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeSender records gateway calls and lets tests inject failures per message.
type fakeSender struct {
	mu       sync.Mutex
	messages []*Message
	sendFunc func(msg *Message) (string, error)
}

func (f *fakeSender) Send(ctx context.Context, msg *Message) (string, error) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()

	if f.sendFunc != nil {
		return f.sendFunc(msg)
	}
	return "msg-id", nil
}

func (f *fakeSender) sent() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// fakeRenderer produces deterministic content without touching templates.
type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(kind Kind, data map[string]any) (string, string, string, error) {
	if f.err != nil {
		return "", "", "", f.err
	}
	return "subject:" + string(kind), "<p>body</p>", "body", nil
}

// fakeSeenStore is an in-memory dedup store with error injection.
type fakeSeenStore struct {
	mu   sync.Mutex
	keys map[string]bool
	err  error
}

func newFakeSeenStore() *fakeSeenStore {
	return &fakeSeenStore{keys: make(map[string]bool)}
}

func (f *fakeSeenStore) FirstObservation(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

// stubStore implements DocumentStore with overridable behavior per method.
// Unset methods return zero values so tests only wire what they assert on.
type stubStore struct {
	mu sync.Mutex

	doctorFunc        func(id string) (*DoctorDoc, error)
	campaignFunc      func(id string) (*CampaignDoc, error)
	claimFunc         func(id string) (bool, error)
	promotionalFunc   func() ([]Recipient, error)
	healthTipFunc     func() ([]Recipient, error)
	listDueFunc       func(dueBefore time.Time, limit int) ([]*CampaignDoc, error)
	countsFunc        func() (*StoreCounts, error)
	activity          []ActivityEntry
	campaignSends     map[string]int
	verificationCalls int
}

func newStubStore() *stubStore {
	return &stubStore{campaignSends: make(map[string]int)}
}

func (s *stubStore) Doctor(ctx context.Context, id string) (*DoctorDoc, error) {
	if s.doctorFunc != nil {
		return s.doctorFunc(id)
	}
	return nil, errors.New("not found")
}

func (s *stubStore) UpdateDoctorVerification(ctx context.Context, id, status, adminID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verificationCalls++
	return nil
}

func (s *stubStore) PromotionalRecipients(ctx context.Context) ([]Recipient, error) {
	if s.promotionalFunc != nil {
		return s.promotionalFunc()
	}
	return nil, nil
}

func (s *stubStore) HealthTipRecipients(ctx context.Context) ([]Recipient, error) {
	if s.healthTipFunc != nil {
		return s.healthTipFunc()
	}
	return nil, nil
}

func (s *stubStore) Campaign(ctx context.Context, id string) (*CampaignDoc, error) {
	if s.campaignFunc != nil {
		return s.campaignFunc(id)
	}
	return nil, errors.New("not found")
}

func (s *stubStore) ClaimScheduledCampaign(ctx context.Context, id string) (bool, error) {
	if s.claimFunc != nil {
		return s.claimFunc(id)
	}
	return false, nil
}

func (s *stubStore) RecordCampaignSend(ctx context.Context, id string, recipientCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaignSends[id] = recipientCount
	return nil
}

func (s *stubStore) ListDueCampaigns(ctx context.Context, dueBefore time.Time, limit int) ([]*CampaignDoc, error) {
	if s.listDueFunc != nil {
		return s.listDueFunc(dueBefore, limit)
	}
	return nil, nil
}

func (s *stubStore) UserPreferences(ctx context.Context, userID string) (*EmailPreferences, error) {
	return &EmailPreferences{}, nil
}

func (s *stubStore) UpdateUserPreferences(ctx context.Context, userID string, prefs EmailPreferences) error {
	return nil
}

func (s *stubStore) UnsubscribeUser(ctx context.Context, userID string) error {
	return nil
}

func (s *stubStore) Counts(ctx context.Context) (*StoreCounts, error) {
	if s.countsFunc != nil {
		return s.countsFunc()
	}
	return &StoreCounts{}, nil
}

func (s *stubStore) RecordActivity(ctx context.Context, entry ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entry)
	return nil
}

func (s *stubStore) activityEntries() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEntry, len(s.activity))
	copy(out, s.activity)
	return out
}

// fakeFeed hands out test-controlled event channels keyed by collection.
// It remembers every channel it ever handed out, so tests can verify that
// each subscription was cancelled.
type fakeFeed struct {
	mu       sync.Mutex
	channels map[Collection]chan ChangeEvent
	all      []chan ChangeEvent
	subErr   error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{channels: make(map[Collection]chan ChangeEvent)}
}

func (f *fakeFeed) Subscribe(ctx context.Context, q Query) (<-chan ChangeEvent, CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subErr != nil {
		return nil, nil, f.subErr
	}

	ch := make(chan ChangeEvent, 16)
	f.channels[q.Collection] = ch
	f.all = append(f.all, ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() { close(ch) })
	}
	return ch, cancel, nil
}

func (f *fakeFeed) channel(col Collection) chan ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[col]
}

func (f *fakeFeed) allChannels() []chan ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chan ChangeEvent, len(f.all))
	copy(out, f.all)
	return out
}

// fastDispatchConfig keeps pacing delays negligible in tests.
func fastDispatchConfig(bulkBatch int) DispatcherConfig {
	return DispatcherConfig{
		BulkBatchSize:        bulkBatch,
		SinglePerSecond:      10000,
		BulkBatchesPerSecond: 10000,
		SendTimeout:          time.Second,
	}
}
