// Package metrics exposes Prometheus instrumentation for the platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_betting_deposits_processed_total",
		Help: "Gift deposits credited to users",
	})

	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_betting_bets_placed_total",
		Help: "Bets accepted",
	})

	EventsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_betting_events_settled_total",
		Help: "Events settled",
	})

	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gift_betting_payouts_stars_total",
		Help: "Stars paid out to winning bets",
	})

	RequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gift_betting_request_errors_total",
		Help: "API errors by endpoint",
	}, []string{"endpoint"})
)
