package database

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

// opMetrics names the metrics of one database. Metrics are registered in the default
// VictoriaMetrics set and exposed by the server's /metrics endpoint.
type opMetrics struct {
	database string
}

func newOpMetrics(database string) *opMetrics {
	return &opMetrics{database: database}
}

// count increments the operation counter for op.
func (m *opMetrics) count(op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dotkv_database_operations_total{database=%q,op=%q}`, m.database, op)).Inc()
}

func (m *opMetrics) storeDuration(op string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dotkv_database_store_duration_seconds{database=%q,op=%q}`, m.database, op)).UpdateDuration(start)
}

func (m *opMetrics) storeError(op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dotkv_database_store_errors_total{database=%q,op=%q}`, m.database, op)).Inc()
}

// storeCall runs a single store operation, records its duration and wraps its error.
func (db *Database) storeCall(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	db.metrics.storeDuration(op, start)
	if err != nil {
		db.metrics.storeError(op)
		log.Warningf("%s on collection %s failed: %v", op, db.collection, err)
		return errors.Wrapf(err, "%s on collection %s", op, db.collection)
	}
	return nil
}
