package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/store/memory"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func event(t *testing.T, typ string) contracts.Event {
	t.Helper()
	evt, err := contracts.NewEvent(typ, "order-1", contracts.OrderNotice{
		OrderNumber:   "ORD-ABCD1234",
		CustomerName:  "Amina <script>",
		CustomerEmail: "amina@example.com",
		Address:       "1 Market St",
		Items:         []contracts.NoticeItem{{Name: "Dates", Quantity: 2, UnitPrice: "7.25"}},
		Subtotal:      "14.50",
		Tax:           "0.00",
		Total:         "14.50",
		PaymentMethod: "cod",
		PaymentStatus: "Pending",
		DeliveryDate:  time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}, time.Now())
	require.NoError(t, err)
	return evt
}

func TestDispatcher_OrderPlacedEmailsAdmin(t *testing.T) {
	n := &fakeNotifier{}
	d := &Dispatcher{Notifier: n, AdminEmail: "admin@example.com", Service: "test"}

	require.NoError(t, d.Handle(context.Background(), event(t, contracts.EventOrderPlaced)))

	sent := n.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@example.com", sent[0].To)
	assert.Equal(t, "New Order Received: #ORD-ABCD1234", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "Total: $14.50")
	assert.Contains(t, sent[0].HTML, "Amina &lt;script&gt;")
	assert.Contains(t, sent[0].Text, "Amina")
}

func TestDispatcher_OrderFulfilledEmailsCustomer(t *testing.T) {
	n := &fakeNotifier{}
	d := &Dispatcher{Notifier: n, AdminEmail: "admin@example.com", Service: "test"}

	require.NoError(t, d.Handle(context.Background(), event(t, contracts.EventOrderFulfilled)))

	sent := n.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "amina@example.com", sent[0].To)
	assert.Contains(t, sent[0].Subject, "ORD-ABCD1234")
}

func TestDispatcher_FailureIsReportedButNotPublished(t *testing.T) {
	n := &fakeNotifier{err: errors.New("smtp down")}
	d := &Dispatcher{Notifier: n, AdminEmail: "admin@example.com", Service: "test"}
	evt := event(t, contracts.EventOrderPlaced)

	err := d.Handle(context.Background(), evt)
	assert.ErrorIs(t, err, apperr.ErrNotificationFailed)

	store := memory.New("events")
	require.NoError(t, store.CreateOrder(context.Background(), orderWithoutItems(), evt))
	records := store.Outbox()
	require.Len(t, records, 1)
	assert.NoError(t, d.Publish(context.Background(), records[0]))
}

func TestDispatcher_MissingRecipient(t *testing.T) {
	d := &Dispatcher{Notifier: &fakeNotifier{}, Service: "test"}
	err := d.Handle(context.Background(), event(t, contracts.EventOrderPlaced))
	assert.ErrorIs(t, err, apperr.ErrNotificationFailed)
}

func TestDispatcher_IgnoresUnknownEvents(t *testing.T) {
	n := &fakeNotifier{}
	d := &Dispatcher{Notifier: n, AdminEmail: "admin@example.com", Service: "test"}
	require.NoError(t, d.Handle(context.Background(), event(t, "order.archived")))
	assert.Empty(t, n.messages())
}

type fakeReader struct {
	msgs   chan kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumer_DeduplicatesByEventID(t *testing.T) {
	evt := event(t, contracts.EventOrderPlaced)
	rec := mustRecord(t, evt)

	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	reader.msgs <- kafka.Message{Value: rec}
	reader.msgs <- kafka.Message{Value: rec}
	reader.msgs <- kafka.Message{Value: []byte("not json")}

	n := &fakeNotifier{}
	c := &Consumer{
		Reader:     reader,
		Inbox:      memory.New("events"),
		Dispatcher: &Dispatcher{Notifier: n, AdminEmail: "admin@example.com", Service: "test"},
		Service:    "test",
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.msgs) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Len(t, n.messages(), 1)
	assert.True(t, reader.closed)
}
