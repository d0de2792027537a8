package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/netmetrics/snmp-label-exporter/internal/config"
	"github.com/netmetrics/snmp-label-exporter/internal/snmpclient"
	"github.com/netmetrics/snmp-label-exporter/models"
)

// fakeQuerier returns canned rows keyed by oid, ignoring the network
// entirely.
type fakeQuerier struct {
	mu   sync.Mutex
	rows map[string][]snmpclient.Row
}

func (f *fakeQuerier) Query(ctx context.Context, target, community, version, oid string, queryType models.QueryType, storeMethod models.StoreMethod, oidSuffix string, filter *models.Filter) ([]snmpclient.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[oid], nil
}

// fakeSink records every UpdateMetric call.
type fakeSink struct {
	mu      sync.Mutex
	updates []update
}

type update struct {
	host, metric string
	labels       map[string]string
	value        float64
}

func (f *fakeSink) AddMetric(name, metricType, description string) {}
func (f *fakeSink) Clear(host, metricName string)                  {}
func (f *fakeSink) ReleaseUpdateLock(host, metricName string)       {}
func (f *fakeSink) StartServing(ctx context.Context) error          { return nil }
func (f *fakeSink) UpdateMetric(host, metricName string, labels map[string]string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	f.updates = append(f.updates, update{host: host, metric: metricName, labels: cp, value: value})
}

func buildTestConfig() *config.LoadedConfig {
	host := models.Host{
		Hostname:     "r1",
		Community:    "public",
		Version:      "2c",
		StaticLabels: map[string]string{"dc": "eu"},
		Modules:      []string{"if_stats"},
	}
	module := models.Module{
		Name: "if_stats",
		Labels: map[string]map[string]models.LabelOID{
			"names": {
				"ifDescr": {
					OIDBase: models.OIDBase{Name: "ifDescr", OID: "1.2.3", QueryType: models.QueryWalk, StoreMethod: models.StoreValue, Every: 60},
				},
			},
		},
		Metrics: []models.MetricOID{
			{
				OIDBase:    models.OIDBase{Name: "ifInOctets", OID: "1.2.4", QueryType: models.QueryWalk, StoreMethod: models.StoreValue, Every: 60},
				LabelGroup: []string{"names"},
			},
		},
	}
	return &config.LoadedConfig{
		Hosts:       []models.Host{host},
		Modules:     map[string]models.Module{"if_stats": module},
		Description: map[string]config.MetricDescription{"ifInOctets": {Type: "counter", Description: "bytes"}},
	}
}

func TestWarmupAndMetricCollection(t *testing.T) {
	cfg := buildTestConfig()
	q := &fakeQuerier{rows: map[string][]snmpclient.Row{
		"1.2.3": {{Index: "1", Value: "eth0"}},
		"1.2.4": {{Index: "1", Value: "12345"}},
	}}
	snk := &fakeSink{}

	o := New(cfg, q, snk, 2, nil)
	o.Warmup(context.Background())

	host := cfg.Hosts[0]
	module := cfg.Modules["if_stats"]
	o.updateMetric(context.Background(), host, module, module.Metrics[0])

	snk.mu.Lock()
	defer snk.mu.Unlock()
	if len(snk.updates) != 1 {
		t.Fatalf("expected 1 update, got %d: %+v", len(snk.updates), snk.updates)
	}
	u := snk.updates[0]
	if u.value != 12345 {
		t.Errorf("expected value 12345, got %v", u.value)
	}
	if u.labels["ifDescr"] != "eth0" {
		t.Errorf("expected resolved label ifDescr=eth0, got %+v", u.labels)
	}
	if u.labels["dc"] != "eu" {
		t.Errorf("expected static label dc=eu to survive merge, got %+v", u.labels)
	}
}

func TestMetricDroppedWhenLabelResolutionPoisoned(t *testing.T) {
	cfg := buildTestConfig()
	// No labels ever warmed up: label cache is empty, so resolution is poisoned.
	q := &fakeQuerier{rows: map[string][]snmpclient.Row{
		"1.2.4": {{Index: "1", Value: "999"}},
	}}
	snk := &fakeSink{}

	o := New(cfg, q, snk, 2, nil)
	o.warmupJoins()
	host := cfg.Hosts[0]
	module := cfg.Modules["if_stats"]
	o.updateMetric(context.Background(), host, module, module.Metrics[0])

	snk.mu.Lock()
	defer snk.mu.Unlock()
	if len(snk.updates) != 0 {
		t.Fatalf("expected sample to be dropped, got %+v", snk.updates)
	}
}
