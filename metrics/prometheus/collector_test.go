package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorUpdatesGauges(t *testing.T) {
	c := NewCollector()

	c.Version(7)
	c.EarliestVersion(2)
	c.LeafCount(1024)
	c.CommitNodes(65)
	c.StaleNodes(64)
	c.RevertedTo(5)
	c.PrunedTo(3)

	checks := []struct {
		name  string
		gauge prometheus.Gauge
		value float64
	}{
		{"head version", c.headVersion, 7},
		{"earliest version", c.earliestVersion, 2},
		{"leaf count", c.leafCount, 1024},
		{"commit nodes", c.commitNodes, 65},
		{"stale nodes", c.staleNodes, 64},
		{"reverted to", c.revertedTo, 5},
		{"pruned to", c.prunedTo, 3},
	}
	for _, check := range checks {
		if got := testutil.ToFloat64(check.gauge); got != check.value {
			t.Errorf("%s: got %v, want %v", check.name, got, check.value)
		}
	}
}
