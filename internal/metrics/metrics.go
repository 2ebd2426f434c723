package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Deposit metrics
	DepositsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_deposits_total",
			Help: "Number of committed deposits by kind (local/remote)",
		},
		[]string{"kind"},
	)

	DepositsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_deposits_rejected_total",
			Help: "Number of rejected deposits by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	// Withdrawal metrics
	WithdrawalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_withdrawal_requests_total",
			Help: "Number of withdrawal requests created by path",
		},
		[]string{"path"},
	)

	WithdrawalsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_withdrawals_settled_total",
			Help: "Number of withdrawal requests reaching a terminal state",
		},
		[]string{"outcome"},
	)

	PendingWithdrawals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_pending_withdrawals",
		Help: "Number of withdrawal requests currently pending",
	})

	// Replay protection metrics
	ReplayRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_replay_rejections_total",
			Help: "Number of operations rejected by a replay guard",
		},
		[]string{"namespace"},
	)

	// Fee metrics
	FeeCollections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_fee_collections_total",
		Help: "Number of performance fee assessments that minted shares",
	})

	// Aggregate state gauges (updated after each committed mutation)
	ShareSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_share_supply",
		Help: "Total share supply in whole normalized units",
	})

	ManagedAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_managed_assets",
		Help: "Managed assets in whole normalized units",
	})

	// NATS connection metrics
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_events_published_total",
			Help: "Number of audit events published by type",
		},
		[]string{"type"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
