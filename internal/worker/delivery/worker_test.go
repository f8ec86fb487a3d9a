package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/queue"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed int
	fetched   int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.fetched++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) counts() (fetched, committed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetched, r.committed
}

type memoryLog struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
	err        error
}

func (l *memoryLog) Append(_ context.Context, d domain.Delivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.deliveries = append(l.deliveries, d)
	return nil
}

func (l *memoryLog) ListByRun(context.Context, uuid.UUID, int, []byte) ([]domain.Delivery, []byte, error) {
	return nil, nil, nil
}

func run(t *testing.T, reader *fakeReader, log *memoryLog, fetched int) int {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWithReader(reader, log, nil).Run(ctx) }()

	require.Eventually(t, func() bool {
		f, _ := reader.counts()
		return f == fetched
	}, time.Second, 5*time.Millisecond)
	// Give the last message time to finish processing.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	_, committed := reader.counts()
	return committed
}

func TestWorkerAppendsDeliveries(t *testing.T) {
	runID := uuid.New()
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	event := queue.DeliveryEvent{RunID: runID, Position: 3, Phone: "212679752339", Status: "failed", Error: "rejected", DurationMs: 120, OccurredAt: at}
	b, err := json.Marshal(event)
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{{Value: b}}}
	log := &memoryLog{}
	assert.Equal(t, 1, run(t, reader, log, 1))

	require.Len(t, log.deliveries, 1)
	assert.Equal(t, domain.Delivery{
		RunID:      runID,
		Position:   3,
		Phone:      "212679752339",
		Status:     domain.DeliveryStatusFailed,
		Error:      "rejected",
		OccurredAt: at,
		Duration:   120 * time.Millisecond,
	}, log.deliveries[0])
}

func TestWorkerLeavesFailedAppendsUncommitted(t *testing.T) {
	b, err := json.Marshal(queue.DeliveryEvent{RunID: uuid.New(), Position: 1, Status: "sent"})
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{{Value: b}}}
	log := &memoryLog{err: errors.New("scylla down")}
	assert.Equal(t, 0, run(t, reader, log, 1))
}

func TestToDeliveryDefaultsTimestamp(t *testing.T) {
	d := toDelivery(queue.DeliveryEvent{RunID: uuid.New(), Status: "sent"})
	assert.False(t, d.OccurredAt.IsZero())
	assert.Equal(t, domain.DeliveryStatusSent, d.Status)
}
