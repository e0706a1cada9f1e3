// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_deposits_total",
		Help: "Number of successful deposits.",
	})

	WithdrawalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_withdrawals_total",
		Help: "Number of successful withdrawals.",
	})

	CreditsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_credits_issued_total",
		Help: "Credits issued from deposits and yield accrual.",
	})

	CreditsConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_credits_consumed_total",
		Help: "Credits consumed by platform actions.",
	})

	ConsumeReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_consume_replays_total",
		Help: "Consumption requests answered from the idempotency record.",
	})

	LedgerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_ledger_retries_total",
		Help: "Ledger transactions retried after serialization conflicts.",
	})

	OracleStaleReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_oracle_stale_reads_total",
		Help: "Oracle reads served from the last-known cached rate.",
	})

	OracleAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditledger_oracle_anomalies_total",
		Help: "Oracle responses rejected because the rate decreased.",
	})
)
