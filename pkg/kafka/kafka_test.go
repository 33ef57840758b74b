package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewClient(t *testing.T) {
	assert.False(t, NewClient("").Enabled())
	c := NewClient(" broker-1:9092, ,broker-2:9092 ")
	assert.True(t, c.Enabled())
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Brokers)
}

func TestOutboxPublisher(t *testing.T) {
	w := &captureWriter{}
	p := &OutboxPublisher{Writer: w}
	rec := outbox.Record{ID: 7, EventID: "evt-1", Key: "order-1", Payload: []byte(`{"type":"order.placed"}`), CreatedAt: time.Now()}

	require.NoError(t, p.Publish(context.Background(), rec))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"type":"order.placed"}`, string(w.msgs[0].Value))
	assert.Equal(t, "evt-1", string(w.msgs[0].Headers[0].Value))

	assert.ErrorIs(t, (&OutboxPublisher{}).Publish(context.Background(), rec), ErrDisabled)
}
