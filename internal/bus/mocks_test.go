package bus

import (
	"context"
	"sync"
	"time"
)

type fakeDelivery struct {
	subj      string
	payload   []byte
	headers   map[string]string
	delivered int

	mu      sync.Mutex
	acked   bool
	termed  bool
	nakWith *time.Duration
}

func (f *fakeDelivery) subject() string          { return f.subj }
func (f *fakeDelivery) data() []byte             { return f.payload }
func (f *fakeDelivery) header(key string) string { return f.headers[key] }
func (f *fakeDelivery) numDelivered() int        { return f.delivered }

func (f *fakeDelivery) ack() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeDelivery) nak(delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nakWith = &delay
	return nil
}

func (f *fakeDelivery) term() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.termed = true
	return nil
}

type MockDeadLetterer struct {
	DeadLetterFunc func(ctx context.Context, subject string, data []byte, reason string) error
}

func (m *MockDeadLetterer) DeadLetter(ctx context.Context, subject string, data []byte, reason string) error {
	if m.DeadLetterFunc != nil {
		return m.DeadLetterFunc(ctx, subject, data, reason)
	}
	return nil
}
