package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestCampaignPublisherKeysByRun(t *testing.T) {
	w := &recordingWriter{}
	p := NewCampaignPublisherWithWriter(w)
	id := uuid.New()

	require.NoError(t, p.PublishRun(context.Background(), CampaignRequest{RunID: id, RequestedBy: "admin", EnqueuedAt: time.Now()}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, id[:], w.msgs[0].Key)

	var got CampaignRequest
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, id, got.RunID)
	assert.Equal(t, "admin", got.RequestedBy)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestDeliveryPublisherWrapsWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := NewDeliveryPublisherWithWriter(w)

	err := p.PublishDelivery(context.Background(), DeliveryEvent{RunID: uuid.New(), Position: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery publisher: write message")
}
