package services

import "github.com/prometheus/client_golang/prometheus"

var (
	crateOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate_opens_total",
			Help: "Committed crate openings by rolled rarity and whether pity forced the floor.",
		},
		[]string{"rarity", "pity"},
	)
	crateOpenFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate_open_failures_total",
			Help: "Crate opens that failed after validation, by cause.",
		},
		[]string{"reason"},
	)
	crateRefunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crate_refunds_total",
			Help: "Compensating refunds by outcome (credited, replayed, failed).",
		},
		[]string{"outcome"},
	)
	storePurchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_purchases_total",
			Help: "Store purchases committed, by item type.",
		},
		[]string{"item_type"},
	)
)

func init() {
	prometheus.MustRegister(crateOpens, crateOpenFailures, crateRefunds, storePurchases)
}
