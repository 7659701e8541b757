// Package metrics exposes Prometheus counters for booking outcomes.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe_booking",
			Name:      "booking_create_total",
			Help:      "Booking attempts by outcome (ok or error kind).",
		},
		[]string{"outcome"},
	)

	bookingCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe_booking",
			Name:      "booking_cancel_total",
			Help:      "Cancellations by refund tier or error kind.",
		},
		[]string{"outcome"},
	)

	bookingCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cafe_booking",
			Name:      "booking_completed_total",
			Help:      "Bookings moved to completed.",
		},
	)

	walletMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe_booking",
			Name:      "wallet_payment_total",
			Help:      "Wallet payments recorded by type.",
		},
		[]string{"type"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cafe_booking",
			Name:      "availability_cache_total",
			Help:      "Availability cache lookups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics with the default registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingCancelled, bookingCompleted, walletMovements, cacheLookups)
	})
}

func IncBookingCreated(outcome string) {
	bookingCreated.WithLabelValues(outcome).Inc()
}

func IncBookingCancelled(outcome string) {
	bookingCancelled.WithLabelValues(outcome).Inc()
}

func AddBookingsCompleted(n int) {
	bookingCompleted.Add(float64(n))
}

func IncWalletPayment(paymentType string) {
	walletMovements.WithLabelValues(paymentType).Inc()
}

func IncCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
