package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage counters, gauges, and histograms for the netflow pipeline.

var (
	// Block feed
	ListenerHeadsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "listener",
		Name:      "heads_received_total",
		Help:      "Total new-head notifications received from the subscription",
	})

	ListenerDuplicateHeads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "listener",
		Name:      "duplicate_heads_total",
		Help:      "Total head notifications at or below the last processed block",
	})

	// Log fetch
	FetcherLogsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "fetcher",
		Name:      "logs_fetched_total",
		Help:      "Total transfer logs returned by per-block log queries",
	})

	FetcherRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "fetcher",
		Name:      "retries_total",
		Help:      "Total transient fetch retries",
	})

	FetcherErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "fetcher",
		Name:      "errors_total",
		Help:      "Total fetch failures after retry exhaustion",
	})

	FetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "netflow",
		Subsystem: "fetcher",
		Name:      "block_duration_seconds",
		Help:      "Per-block log fetch duration",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// Decode + classify
	DecoderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "decoder",
		Name:      "errors_total",
		Help:      "Total malformed logs skipped by the decoder",
	})

	ClassifierWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "classifier",
		Name:      "warnings_total",
		Help:      "Total transfers dropped because neither side is watched (filter mismatch)",
	})

	// Writer
	WriterBlocksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "writer",
		Name:      "blocks_committed_total",
		Help:      "Total per-block transactions committed",
	})

	WriterTransfersWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "writer",
		Name:      "transfers_written_total",
		Help:      "Total transfer rows inserted",
	})

	WriterDuplicateTransfers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "writer",
		Name:      "duplicate_transfers_total",
		Help:      "Total transfer inserts that were already present",
	})

	WriterCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "netflow",
		Subsystem: "writer",
		Name:      "commit_duration_seconds",
		Help:      "Per-block commit duration (DB transaction)",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// Accumulator
	AccumulatorBlockNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netflow",
		Subsystem: "accumulator",
		Name:      "block_number",
		Help:      "Last block whose effects are reflected in the cumulative value",
	})

	AccumulatorClamps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "accumulator",
		Name:      "clamps_total",
		Help:      "Total block deltas clamped at zero on underflow",
	})

	// Pipeline
	PipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netflow",
		Subsystem: "pipeline",
		Name:      "state",
		Help:      "Pipeline state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	PipelineChannelDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netflow",
		Subsystem: "pipeline",
		Name:      "channel_depth",
		Help:      "Current depth of the writer work channel",
	})

	CatchupBlocksReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "pipeline",
		Name:      "catchup_blocks_replayed_total",
		Help:      "Total blocks replayed by the catch-up controller",
	})

	// RPC
	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for the rate limiter",
	}, []string{"chain"})

	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netflow",
		Subsystem: "rpc",
		Name:      "circuit_breaker_state",
		Help:      "RPC circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	// Snapshot publishing
	SnapshotPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "snapshot",
		Name:      "publishes_total",
		Help:      "Total snapshots published to the external stream",
	})

	SnapshotPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "snapshot",
		Name:      "publish_errors_total",
		Help:      "Total snapshot publish failures (non-fatal)",
	})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netflow",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
