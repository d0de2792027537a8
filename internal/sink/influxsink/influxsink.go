// Package influxsink implements the InfluxDB sink driver variant described
// in spec.md §4.6: rows accumulate a partially-filled field set and flush
// to InfluxDB v1 line protocol once every declared field has been written
// since the last flush, via github.com/influxdata/influxdb1-client/v2.
package influxsink

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"

	"github.com/netmetrics/snmp-label-exporter/models"
)

const (
	flushInterval = 10 * time.Second
	chunkSize     = 1000
	maxRetries    = 3
	retryBackoff  = 5 * time.Second
)

type pendingKey struct {
	host        string
	measurement string
	canonLabels string
}

type pendingRow struct {
	tags    map[string]string
	fields  map[string]interface{}
	written map[string]bool
	ts      time.Time
}

// Sink is the InfluxDB variant of the sink driver (spec.md §4.6).
type Sink struct {
	addr, database, username, password string
	logger                             *slog.Logger

	mu               sync.Mutex
	measurementOf    map[string]string            // metric name -> measurement
	fieldOf          map[string]string            // metric name -> field name
	declaredFields   map[string]map[string]bool   // measurement -> field set
	pending          map[pendingKey]*pendingRow
}

// Config parameterises an InfluxDB v1 HTTP connection.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
}

// New returns an InfluxDB Sink writing to cfg.
func New(cfg Config, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Sink{
		addr:           cfg.Addr,
		database:       cfg.Database,
		username:       cfg.Username,
		password:       cfg.Password,
		logger:         logger,
		measurementOf:  make(map[string]string),
		fieldOf:        make(map[string]string),
		declaredFields: make(map[string]map[string]bool),
		pending:        make(map[pendingKey]*pendingRow),
	}
}

// AddMetric implements sink.Sink. The measurement name is the metric's type
// split on "$", prefix only; the field name is the metric's description
// (spec.md §6, original_source/.../influxdb.py: 'measurement': metric_type,
// 'field': description).
func (s *Sink) AddMetric(name, metricType, description string) {
	measurement := strings.SplitN(metricType, "$", 2)[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurementOf[name] = measurement
	s.fieldOf[name] = description
	fields, ok := s.declaredFields[measurement]
	if !ok {
		fields = make(map[string]bool)
		s.declaredFields[measurement] = fields
	}
	fields[description] = true
}

// Clear implements sink.Sink. A no-op: the InfluxDB variant is append-only
// (spec.md §4.6).
func (s *Sink) Clear(host, metricName string) {}

// ReleaseUpdateLock implements sink.Sink. A no-op, matching Clear.
func (s *Sink) ReleaseUpdateLock(host, metricName string) {}

// UpdateMetric implements sink.Sink: accumulates value into the pending row
// for (host, measurement, canonicalised labels), marking metricName's field
// written. The timestamp is captured the first time any field is written
// since the previous flush.
func (s *Sink) UpdateMetric(host, metricName string, labels map[string]string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	measurement := s.measurementOf[metricName]
	field := s.fieldOf[metricName]
	if measurement == "" {
		// AddMetric was never called for this name (no description entry);
		// fall back to the metric name itself so the row still flushes.
		measurement = strings.SplitN(metricName, "$", 2)[0]
		field = metricName
	}

	canon := models.CanonicalLabels(labels)
	key := pendingKey{host: host, measurement: measurement, canonLabels: canon}

	row, ok := s.pending[key]
	if !ok {
		row = &pendingRow{
			tags:    models.MergeLabels(map[string]string{"host": host}, labels),
			fields:  make(map[string]interface{}),
			written: make(map[string]bool),
			ts:      time.Now().UTC(),
		}
		s.pending[key] = row
	}
	if len(row.written) == 0 {
		row.ts = time.Now().UTC()
	}
	row.fields[field] = value
	row.written[field] = true
}

// readyRows pops and returns every pending row whose written field set
// equals the measurement's full declared field set.
func (s *Sink) readyRows() map[string][]*client.Point {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]*client.Point)
	for key, row := range s.pending {
		declared := s.declaredFields[key.measurement]
		if len(declared) == 0 || len(row.written) < len(declared) {
			continue
		}
		pt, err := client.NewPoint(key.measurement, row.tags, row.fields, row.ts)
		if err != nil {
			s.logger.Error("influxsink: build point", "measurement", key.measurement, "error", err)
			delete(s.pending, key)
			continue
		}
		out[key.measurement] = append(out[key.measurement], pt)
		delete(s.pending, key)
	}
	return out
}

func (s *Sink) newHTTPClient() (client.Client, error) {
	return client.NewHTTPClient(client.HTTPConfig{
		Addr:     s.addr,
		Username: s.username,
		Password: s.password,
	})
}

// flush drains ready rows, chunks them into groups of chunkSize, and writes
// each chunk with up to maxRetries attempts and a retryBackoff delay between
// attempts (spec.md §4.6).
func (s *Sink) flush() {
	byMeasurement := s.readyRows()
	var all []*client.Point
	for _, pts := range byMeasurement {
		all = append(all, pts...)
	}
	if len(all) == 0 {
		return
	}

	c, err := s.newHTTPClient()
	if err != nil {
		s.logger.Error("influxsink: connect", "error", err)
		return
	}
	defer c.Close()

	for i := 0; i < len(all); i += chunkSize {
		end := i + chunkSize
		if end > len(all) {
			end = len(all)
		}
		chunk := all[i:end]
		s.writeChunkWithRetry(c, chunk)
	}
}

func (s *Sink) writeChunkWithRetry(c client.Client, chunk []*client.Point) {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{Database: s.database})
	if err != nil {
		s.logger.Error("influxsink: build batch", "error", err)
		return
	}
	for _, pt := range chunk {
		bp.AddPoint(pt)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = c.Write(bp)
		if lastErr == nil {
			return
		}
		s.logger.Warn("influxsink: write failed, retrying", "attempt", attempt, "error", lastErr)
		if attempt < maxRetries {
			time.Sleep(retryBackoff)
		}
	}
	s.logger.Error("influxsink: write failed after retries", "points", len(chunk), "error", lastErr)
}

// StartServing implements sink.Sink: runs the background pusher until ctx
// is cancelled.
func (s *Sink) StartServing(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	s.logger.Info("influxsink: pusher started", "addr", s.addr, "database", s.database, "interval", flushInterval)
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return nil
		case <-ticker.C:
			s.flush()
		}
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
