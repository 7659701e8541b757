/*
Package events publishes booking lifecycle events.

PURPOSE:
  Downstream consumers (notifications, analytics) learn about committed
  state changes without polling. Events are published after the atomic
  unit commits; a failed publish is logged by the caller and never undoes
  the commit.

ROUTING KEYS:
  booking.created    - a booking was confirmed and paid
  booking.cancelled  - a booking was cancelled (refund details included)
  booking.completed  - a booking's slot elapsed or an admin completed it
  wallet.recharged   - a user topped up their wallet

IMPLEMENTATIONS:
  - AMQPPublisher: RabbitMQ topic exchange (amqp.go)
  - Noop:          Drops everything
  - Recorder:      Keeps events in memory for tests
*/
package events

import (
	"context"
	"sync"
	"time"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
	WalletRecharged  = "wallet.recharged"
)

// Event is the JSON body of every message. Amounts are decimal strings.
type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     string    `json:"user_id"`
	BookingID  string    `json:"booking_id,omitempty"`
	CafeID     string    `json:"cafe_id,omitempty"`
	Date       string    `json:"date,omitempty"`
	Slot       string    `json:"slot,omitempty"`
	Players    int       `json:"players,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Refund     string    `json:"refund,omitempty"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
