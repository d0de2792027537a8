package promsink

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func collectMetrics(t *testing.T, s *Sink) []prometheus.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	go func() {
		s.Collect(ch)
		close(ch)
	}()
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestClearUpdateReleaseRoundTrip(t *testing.T) {
	s := New(":9116", "/metrics", nil)
	s.AddMetric("ifInOctets", "counter", "bytes received")

	s.Clear("r1", "ifInOctets")
	s.UpdateMetric("r1", "ifInOctets", map[string]string{"ifDescr": "eth0"}, 42)
	s.ReleaseUpdateLock("r1", "ifInOctets")

	metrics := collectMetrics(t, s)
	if len(metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(metrics))
	}
}

func TestClearErasesPreviousRows(t *testing.T) {
	s := New(":9116", "/metrics", nil)
	s.AddMetric("ifInOctets", "counter", "bytes received")

	s.Clear("r1", "ifInOctets")
	s.UpdateMetric("r1", "ifInOctets", map[string]string{"ifDescr": "eth0"}, 42)
	s.ReleaseUpdateLock("r1", "ifInOctets")

	s.Clear("r1", "ifInOctets")
	s.ReleaseUpdateLock("r1", "ifInOctets")

	metrics := collectMetrics(t, s)
	if len(metrics) != 0 {
		t.Fatalf("expected 0 metrics after re-clear, got %d", len(metrics))
	}
}

func TestBindAddress(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{":9116", "[::]:9116"},
		{"0.0.0.0:9116", "[::ffff:0.0.0.0]:9116"},
		{"example.com:9116", "example.com:9116"},
	}
	for _, tc := range cases {
		got, err := bindAddress(tc.in)
		if err != nil {
			t.Fatalf("bindAddress(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("bindAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
