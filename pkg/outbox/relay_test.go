package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memSource struct {
	mu      sync.Mutex
	records []Record
}

func (s *memSource) FetchPending(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.SentAt == nil {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memSource) MarkSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			now := time.Now()
			s.records[i].SentAt = &now
		}
	}
	return nil
}

func (s *memSource) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.SentAt == nil {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu      sync.Mutex
	got     []int64
	failOn  int64
	failErr error
}

func (p *recordingPublisher) Publish(_ context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec.ID == p.failOn {
		return p.failErr
	}
	p.got = append(p.got, rec.ID)
	return nil
}

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{ID: int64(i + 1), EventID: "evt", Key: "order"}
	}
	return out
}

func TestFlush_PublishesInOrder(t *testing.T) {
	src := &memSource{records: records(3)}
	pub := &recordingPublisher{}
	r := &Relay{Source: src, Publisher: pub, BatchSize: 10, Service: "test"}

	sent, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, []int64{1, 2, 3}, pub.got)
	assert.Zero(t, src.pending())
}

func TestFlush_StopsAtFirstFailure(t *testing.T) {
	src := &memSource{records: records(3)}
	pub := &recordingPublisher{failOn: 2, failErr: errors.New("broker down")}
	r := &Relay{Source: src, Publisher: pub, Service: "test"}

	sent, err := r.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, src.pending())

	pub.failOn = 0
	sent, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2, 3}, pub.got)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &memSource{records: records(2)}
	pub := &recordingPublisher{}
	r := &Relay{Source: src, Publisher: pub, Interval: 5 * time.Millisecond, Service: "test"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
