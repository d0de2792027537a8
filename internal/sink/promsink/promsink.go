// Package promsink implements the Prometheus sink driver variant described
// in spec.md §4.6: an in-memory per-(metric,host) row table exposed through
// github.com/prometheus/client_golang as an "unchecked" Collector (it
// declares no fixed descriptor set up front, since label sets vary per
// metric) mounted on promhttp.
package promsink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netmetrics/snmp-label-exporter/models"
)

// row is one cached sample: its labels, its value, and the millisecond
// timestamp it was written at.
type row struct {
	labels map[string]string
	value  float64
	ts     int64
}

type metricKey struct {
	host   string
	metric string
}

// Sink is the Prometheus variant of the sink driver (spec.md §4.6).
type Sink struct {
	listenAddr string
	path       string
	dumpFunc   func() string
	logger     *slog.Logger

	mu    sync.Mutex
	descs map[string]metricDesc
	locks map[metricKey]*sync.Mutex
	rows  map[metricKey]map[string]row // canonicalised labels -> row
}

type metricDesc struct {
	metricType  string
	description string
}

// New returns a Prometheus Sink that will listen on listenAddr and serve the
// exposition at path once StartServing is called.
func New(listenAddr, path string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if path == "" {
		path = "/metrics"
	}
	return &Sink{
		listenAddr: listenAddr,
		path:       path,
		logger:     logger,
		descs:      make(map[string]metricDesc),
		locks:      make(map[metricKey]*sync.Mutex),
		rows:       make(map[metricKey]map[string]row),
	}
}

// SetDumpHandler wires fn as the content source for GET /dump (spec.md §6:
// "returns a text snapshot of both caches for debugging"), served on the
// same listener as the metrics exposition.
func (s *Sink) SetDumpHandler(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dumpFunc = fn
}

// AddMetric implements sink.Sink.
func (s *Sink) AddMetric(name, metricType, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descs[name] = metricDesc{metricType: metricType, description: description}
}

func (s *Sink) lockFor(k metricKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// Clear implements sink.Sink: acquires the (host, metricName) lock and
// erases its rows. The lock is held until ReleaseUpdateLock.
func (s *Sink) Clear(host, metricName string) {
	k := metricKey{host: host, metric: metricName}
	s.lockFor(k).Lock()

	s.mu.Lock()
	s.rows[k] = make(map[string]row)
	s.mu.Unlock()
}

// UpdateMetric implements sink.Sink. Must be called inside a Clear/
// ReleaseUpdateLock bracket.
func (s *Sink) UpdateMetric(host, metricName string, labels map[string]string, value float64) {
	k := metricKey{host: host, metric: metricName}
	canon := models.CanonicalLabels(labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[k]
	if !ok {
		m = make(map[string]row)
		s.rows[k] = m
	}
	m[canon] = row{labels: labels, value: value, ts: time.Now().UnixMilli()}
}

// ReleaseUpdateLock implements sink.Sink.
func (s *Sink) ReleaseUpdateLock(host, metricName string) {
	s.lockFor(metricKey{host: host, metric: metricName}).Unlock()
}

// StartServing implements sink.Sink: mounts the exposition handler and
// serves HTTP until ctx is cancelled.
func (s *Sink) StartServing(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(s); err != nil {
		return fmt.Errorf("promsink: register collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/dump", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		dump := s.dumpFunc
		s.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if dump == nil {
			return
		}
		w.Write([]byte(dump()))
	})

	addr, err := bindAddress(s.listenAddr)
	if err != nil {
		return fmt.Errorf("promsink: %w", err)
	}

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info("promsink: serving", "addr", addr, "path", s.path)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("promsink: serve: %w", err)
		}
		return nil
	}
}

// bindAddress implements spec.md §4.6's host:port parsing: empty host means
// wildcard IPv6 "::"; an IPv4 literal is mapped to "::ffff:A.B.C.D" so a
// single dual-stack socket serves both families.
func bindAddress(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "" {
		return net.JoinHostPort("::", port), nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return net.JoinHostPort("::ffff:"+host, port), nil
	}
	return addr, nil
}

// Describe implements prometheus.Collector. It intentionally sends nothing
// on ch, making this an "unchecked" Collector per client_golang's own
// documentation of that pattern — label sets vary per metric and are not
// known in advance.
func (s *Sink) Describe(ch chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector. It renders every cached row as a
// const metric with an explicit sample timestamp, holding each host's lock
// for the span of that host's rows (spec.md §4.6).
func (s *Sink) Collect(ch chan<- prometheus.Metric) {
	s.mu.Lock()
	descs := make(map[string]metricDesc, len(s.descs))
	for k, v := range s.descs {
		descs[k] = v
	}
	keys := make([]metricKey, 0, len(s.rows))
	for k := range s.rows {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].host < keys[j].host
	})

	for _, k := range keys {
		lock := s.lockFor(k)
		lock.Lock()
		s.mu.Lock()
		rows := s.rows[k]
		out := make([]row, 0, len(rows))
		for _, r := range rows {
			out = append(out, r)
		}
		s.mu.Unlock()
		lock.Unlock()

		sort.Slice(out, func(i, j int) bool {
			return models.CanonicalLabels(out[i].labels) < models.CanonicalLabels(out[j].labels)
		})

		valueType := prometheus.GaugeValue
		if descs[k.metric].metricType == "counter" {
			valueType = prometheus.CounterValue
		}

		for _, r := range out {
			names, values := splitLabels(r.labels)
			desc := prometheus.NewDesc(k.metric, descs[k.metric].description, names, nil)
			m, err := prometheus.NewConstMetric(desc, valueType, r.value, values...)
			if err != nil {
				s.logger.Error("promsink: const metric", "metric", k.metric, "error", err)
				continue
			}
			ch <- prometheus.NewMetricWithTimestamp(time.UnixMilli(r.ts), m)
		}
	}
}

func splitLabels(labels map[string]string) (names, values []string) {
	names = make([]string, 0, len(labels))
	for n := range labels {
		names = append(names, n)
	}
	sort.Strings(names)
	values = make([]string, 0, len(labels))
	for _, n := range names {
		values = append(values, labels[n])
	}
	return names, values
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
