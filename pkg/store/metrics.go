package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazarchat_store_messages_saved_total",
		Help: "Messages persisted to the store.",
	})
	conversationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazarchat_store_conversations_created_total",
		Help: "Conversations created.",
	})
	readMarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazarchat_store_read_marks_total",
		Help: "Messages flipped to read.",
	})
	batchWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazarchat_store_batch_entries_total",
		Help: "Entries applied through write batches.",
	})
)

// CollectPebbleMetrics exposes a small set of gauges derived from the
// engine's internal metrics snapshot.
func CollectPebbleMetrics() {
	if db == nil {
		return
	}
	m := db.Metrics()
	pebbleWALBytes.Set(float64(m.WAL.BytesWritten))
	pebbleFlushes.Set(float64(m.Flush.Count))
	pebbleCompactions.Set(float64(m.Compact.Count))
	pebbleL0Files.Set(float64(m.Levels[0].NumFiles))
}

var (
	pebbleWALBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bazarchat_pebble_wal_bytes_written",
		Help: "Bytes written to the WAL.",
	})
	pebbleFlushes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bazarchat_pebble_flush_count",
		Help: "Memtable flush count.",
	})
	pebbleCompactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bazarchat_pebble_compaction_count",
		Help: "Compaction count.",
	})
	pebbleL0Files = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bazarchat_pebble_l0_files",
		Help: "Files in level 0.",
	})
)
