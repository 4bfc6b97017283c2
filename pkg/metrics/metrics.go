package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmissionsLogged counts emission events anchored on the consensus log
	// and committed locally.
	EmissionsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carbon_emissions_logged_total",
		Help: "Number of emission events logged to the consensus topic and persisted.",
	})

	// OffsetsPurchased counts completed offset settlements.
	OffsetsPurchased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carbon_offsets_purchased_total",
		Help: "Number of completed offset purchases.",
	})

	// OffsetsRedeemed counts successful redemption calls.
	OffsetsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carbon_offsets_redeemed_total",
		Help: "Number of successful offset redemptions.",
	})

	// InconsistenciesRecorded counts settlement inconsistency breadcrumbs by kind.
	InconsistenciesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbon_settlement_inconsistencies_total",
		Help: "Number of recorded settlement inconsistencies awaiting reconciliation.",
	}, []string{"kind"})
)
