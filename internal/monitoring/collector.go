package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"flkv/internal/storage"
)

// engineOps maps Stats counter names to the op label of
// flkv_engine_operations_total.
var engineOps = map[string]string{
	"puts":       "put",
	"gets":       "get",
	"get_misses": "get_miss",
	"deletes":    "delete",
	"batches":    "batch",
	"batch_ops":  "batch_op",
	"flushes":    "flush",
}

// engineCollector turns Engine.Stats into metrics at scrape time.
type engineCollector struct {
	engine storage.Engine

	up          *prometheus.Desc
	operations  *prometheus.Desc
	cacheHits   *prometheus.Desc
	cacheMisses *prometheus.Desc
	cacheEvicts *prometheus.Desc
	cacheSize   *prometheus.Desc
	cacheBytes  *prometheus.Desc
}

func newEngineCollector(engine storage.Engine) *engineCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "engine", name), help, labels, nil)
	}

	return &engineCollector{
		engine:      engine,
		up:          desc("up", "Whether the engine is open.", "backend"),
		operations:  desc("operations_total", "Engine calls by operation.", "backend", "op"),
		cacheHits:   desc("cache_hits_total", "Read cache hits.", "backend"),
		cacheMisses: desc("cache_misses_total", "Read cache misses.", "backend"),
		cacheEvicts: desc("cache_evictions_total", "Read cache evictions.", "backend"),
		cacheSize:   desc("cache_entries", "Entries held by the read cache.", "backend"),
		cacheBytes:  desc("cache_bytes", "Bytes held by the read cache.", "backend"),
	}
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.operations
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheEvicts
	ch <- c.cacheSize
	ch <- c.cacheBytes
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.Stats()
	backend, _ := stats["backend"].(string)

	up := 1.0
	if closed, _ := stats["closed"].(bool); closed {
		up = 0
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, backend)

	for key, op := range engineOps {
		if v, ok := stats[key].(int64); ok {
			ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(v), backend, op)
		}
	}

	if cc, ok := c.engine.(*storage.CachedEngine); ok {
		cs := cc.CacheStats()
		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(cs.Hits), backend)
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(cs.Misses), backend)
		ch <- prometheus.MustNewConstMetric(c.cacheEvicts, prometheus.CounterValue, float64(cs.Evictions), backend)
		ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(cs.Size), backend)
		ch <- prometheus.MustNewConstMetric(c.cacheBytes, prometheus.GaugeValue, float64(cs.Bytes), backend)
	}
}
