package weather

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheCollector exports ObservationCache statistics to Prometheus. Values are
// read from Stats at scrape time.
type CacheCollector struct {
	cache *ObservationCache

	entries   *prometheus.Desc
	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
	ttl       *prometheus.Desc
}

// NewCacheCollector creates a collector for cache.
func NewCacheCollector(namespace string, cache *ObservationCache) *CacheCollector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "observation_cache", n)
	}
	return &CacheCollector{
		cache:     cache,
		entries:   prometheus.NewDesc(name("entries"), "Cached observations by state.", []string{"state"}, nil),
		hits:      prometheus.NewDesc(name("hits_total"), "Cache reads that returned an observation.", nil, nil),
		misses:    prometheus.NewDesc(name("misses_total"), "Cache reads that returned nothing.", nil, nil),
		evictions: prometheus.NewDesc(name("evictions_total"), "Entries removed by expiry or clearing.", nil, nil),
		ttl:       prometheus.NewDesc(name("ttl_seconds"), "Configured entry time-to-live.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.ttl
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Active), "active")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Expired), "expired")
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.ttl, prometheus.GaugeValue, s.TTL.Seconds())
}
