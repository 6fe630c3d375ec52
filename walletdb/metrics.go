package walletdb

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports the bookkeeping of an environment as prometheus metrics.
type Collector struct {
	env *Environment

	initializedDesc *prometheus.Desc
	useCountDesc    *prometheus.Desc
	openFilesDesc   *prometheus.Desc
	databasesDesc   *prometheus.Desc
	checkpointsDesc *prometheus.Desc
}

// Compile-time check that Collector implements prometheus.Collector.
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for env.
func NewCollector(env *Environment) *Collector {
	constLabels := prometheus.Labels{"dir": env.Directory()}

	return &Collector{
		env: env,
		initializedDesc: prometheus.NewDesc(
			"walletdb_env_initialized",
			"Whether the database environment is open.",
			nil, constLabels,
		),
		useCountDesc: prometheus.NewDesc(
			"walletdb_file_use_count",
			"Number of open batches by database file.",
			[]string{"file"}, constLabels,
		),
		openFilesDesc: prometheus.NewDesc(
			"walletdb_open_files",
			"Number of database files with an open handle.",
			nil, constLabels,
		),
		databasesDesc: prometheus.NewDesc(
			"walletdb_databases",
			"Number of databases bound to the environment.",
			nil, constLabels,
		),
		checkpointsDesc: prometheus.NewDesc(
			"walletdb_checkpoints_total",
			"Number of checkpoints issued.",
			nil, constLabels,
		),
	}
}

// Describe sends the descriptors of all metrics to ch.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.initializedDesc
	ch <- c.useCountDesc
	ch <- c.openFilesDesc
	ch <- c.databasesDesc
	ch <- c.checkpointsDesc
}

// Collect sends the current metric values to ch.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.env.Stats()

	var initialized float64
	if stats.Initialized {
		initialized = 1
	}

	ch <- prometheus.MustNewConstMetric(
		c.initializedDesc, prometheus.GaugeValue, initialized,
	)
	for name, count := range stats.UseCounts {
		ch <- prometheus.MustNewConstMetric(
			c.useCountDesc, prometheus.GaugeValue, float64(count),
			name,
		)
	}
	ch <- prometheus.MustNewConstMetric(
		c.openFilesDesc, prometheus.GaugeValue,
		float64(len(stats.OpenFiles)),
	)
	ch <- prometheus.MustNewConstMetric(
		c.databasesDesc, prometheus.GaugeValue, float64(stats.Databases),
	)
	ch <- prometheus.MustNewConstMetric(
		c.checkpointsDesc, prometheus.CounterValue,
		float64(stats.Checkpoints),
	)
}
