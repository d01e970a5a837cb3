package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolGauge struct {
	desc  *prometheus.Desc
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pool statistics, read from the pool on each
// scrape.
type PoolStatsCollector struct {
	pool   *pgxpool.Pool
	gauges []poolGauge
}

var _ prometheus.Collector = (*PoolStatsCollector)(nil)

// NewPoolStatsCollector creates a collector for pool. component is added as
// a constant label.
func NewPoolStatsCollector(pool *pgxpool.Pool, component string) *PoolStatsCollector {
	labels := prometheus.Labels{"component": component}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("reelkit", "db_pool", name), help, nil, labels)
	}
	return &PoolStatsCollector{
		pool: pool,
		gauges: []poolGauge{
			{desc("total_conns", "Connections currently open in the pool"),
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }},
			{desc("idle_conns", "Idle connections in the pool"),
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }},
			{desc("acquired_conns", "Connections currently acquired from the pool"),
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }},
			{desc("max_conns", "Maximum connections allowed in the pool"),
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stats := c.pool.Stat()
	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value(stats))
	}
}

// RegisterPoolStats registers a collector for pool with reg. A collector
// already registered under the same descriptors is not an error.
func RegisterPoolStats(reg prometheus.Registerer, pool *pgxpool.Pool, component string) (*PoolStatsCollector, error) {
	c := NewPoolStatsCollector(pool, component)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return c, nil
}
