package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisher_RoutesByType(t *testing.T) {
	// GIVEN: A publisher on the "cafe.events" exchange
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "cafe.events"}
	at := time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC)

	// WHEN: A cancellation event is published
	err := p.Publish(context.Background(), Event{
		Type: BookingCancelled, OccurredAt: at, UserID: "u1", BookingID: "b1", Refund: "50",
	})
	require.NoError(t, err)

	// THEN: It is routed by its type as persistent JSON
	assert.Equal(t, "cafe.events", ch.exchange)
	assert.Equal(t, BookingCancelled, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var got Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "b1", got.BookingID)
	assert.Equal(t, "50", got.Refund)
}

func TestRecorder_KeepsOrder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: BookingCreated}))
	require.NoError(t, r.Publish(ctx, Event{Type: BookingCancelled}))

	assert.Equal(t, []string{BookingCreated, BookingCancelled}, r.Types())
}
