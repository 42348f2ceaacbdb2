package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenprima/mediaplane/internal/model"
	"github.com/lumenprima/mediaplane/internal/queue"
)

// QueueStats provides the metrics collector access to the live queue
// router's GPU/CPU/NLP/download/utility worker pools.
type QueueStats interface {
	AllStats() map[model.Queue]queue.Stats
}

// RecoveryStats provides the last recovery pass's outcome.
type RecoveryStats interface {
	Stats() (lastPassUnix, recoveredLast int64)
}

// RetryPolicyStats exposes the live retry policy settings.
type RetryPolicyStats interface {
	MaxRetries() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool     *pgxpool.Pool
	queues   QueueStats
	recovery RecoveryStats
	retry    RetryPolicyStats

	// Descriptors for scrape-time gauges.
	queueDepth       *prometheus.Desc
	queueCompleted   *prometheus.Desc
	queueFailed      *prometheus.Desc
	recoveryLastRun  *prometheus.Desc
	recoveryLastN    *prometheus.Desc
	retryMaxRetries  *prometheus.Desc
	dbTotalConns     *prometheus.Desc
	dbAcquiredConns  *prometheus.Desc
	dbIdleConns      *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Any dependency may be nil; its gauges then report 0.
func NewCollector(pool *pgxpool.Pool, queues QueueStats, recovery RecoveryStats, retry RetryPolicyStats) *Collector {
	return &Collector{
		pool:     pool,
		queues:   queues,
		recovery: recovery,
		retry:    retry,
		queueDepth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "depth"),
			"Pending jobs in a resource-class queue.",
			[]string{"queue"}, nil,
		),
		queueCompleted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "completed_total"),
			"Jobs completed by a resource-class queue since startup.",
			[]string{"queue"}, nil,
		),
		queueFailed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "failed_total"),
			"Jobs failed in a resource-class queue since startup.",
			[]string{"queue"}, nil,
		),
		recoveryLastRun: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "recovery", "last_pass_unix"),
			"Unix timestamp of the most recent recovery pass.",
			nil, nil,
		),
		recoveryLastN: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "recovery", "last_pass_recovered"),
			"Number of tasks/files recovered by the most recent pass.",
			nil, nil,
		),
		retryMaxRetries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "retrypolicy", "max_retries"),
			"Live transcription.max_retries value.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.queueCompleted
	ch <- c.queueFailed
	ch <- c.recoveryLastRun
	ch <- c.recoveryLastN
	ch <- c.retryMaxRetries
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.queues != nil {
		for q, stats := range c.queues.AllStats() {
			ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.Pending), string(q))
			ch <- prometheus.MustNewConstMetric(c.queueCompleted, prometheus.GaugeValue, float64(stats.Completed), string(q))
			ch <- prometheus.MustNewConstMetric(c.queueFailed, prometheus.GaugeValue, float64(stats.Failed), string(q))
		}
	}

	if c.recovery != nil {
		lastRun, lastN := c.recovery.Stats()
		ch <- prometheus.MustNewConstMetric(c.recoveryLastRun, prometheus.GaugeValue, float64(lastRun))
		ch <- prometheus.MustNewConstMetric(c.recoveryLastN, prometheus.GaugeValue, float64(lastN))
	} else {
		ch <- prometheus.MustNewConstMetric(c.recoveryLastRun, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.recoveryLastN, prometheus.GaugeValue, 0)
	}

	if c.retry != nil {
		ch <- prometheus.MustNewConstMetric(c.retryMaxRetries, prometheus.GaugeValue, float64(c.retry.MaxRetries()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.retryMaxRetries, prometheus.GaugeValue, 0)
	}

	// Database pool stats
	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
