package storage

import "sync/atomic"

// opCounters tracks calls shared by every backend.
type opCounters struct {
	puts     atomic.Int64
	gets     atomic.Int64
	misses   atomic.Int64
	deletes  atomic.Int64
	batches  atomic.Int64
	batchOps atomic.Int64
	flushes  atomic.Int64
}

func (c *opCounters) snapshot(into map[string]interface{}) map[string]interface{} {
	into["puts"] = c.puts.Load()
	into["gets"] = c.gets.Load()
	into["get_misses"] = c.misses.Load()
	into["deletes"] = c.deletes.Load()
	into["batches"] = c.batches.Load()
	into["batch_ops"] = c.batchOps.Load()
	into["flushes"] = c.flushes.Load()
	return into
}
