package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zkrollup-labs/rsmt/metrics"
)

var _ metrics.Metrics = (*Collector)(nil)

func NewCollector() *Collector {
	headVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_head_version",
		Help: "The last committed version of the state tree",
	})
	earliestVersion := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_earliest_version",
		Help: "The oldest version still readable",
	})
	leafCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_leaf_count",
		Help: "The number of live keys at the head version",
	})
	commitNodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_commit_nodes",
		Help: "The number of nodes written by the last commit",
	})
	staleNodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_stale_nodes",
		Help: "The number of node addresses staled by the last commit",
	})
	revertedTo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_reverted_to",
		Help: "The target of the last completed revert",
	})
	prunedTo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rsmt_pruned_to",
		Help: "The retention bound of the last completed prune",
	})
	prometheus.MustRegister(
		headVersion,
		earliestVersion,
		leafCount,
		commitNodes,
		staleNodes,
		revertedTo,
		prunedTo)

	return &Collector{
		headVersion:     headVersion,
		earliestVersion: earliestVersion,
		leafCount:       leafCount,
		commitNodes:     commitNodes,
		staleNodes:      staleNodes,
		revertedTo:      revertedTo,
		prunedTo:        prunedTo,
	}
}

type Collector struct {
	headVersion     prometheus.Gauge
	earliestVersion prometheus.Gauge
	leafCount       prometheus.Gauge
	commitNodes     prometheus.Gauge
	staleNodes      prometheus.Gauge
	revertedTo      prometheus.Gauge
	prunedTo        prometheus.Gauge
}

func (c *Collector) Version(ver uint64) {
	c.headVersion.Set(float64(ver))
}

func (c *Collector) EarliestVersion(ver uint64) {
	c.earliestVersion.Set(float64(ver))
}

func (c *Collector) LeafCount(n uint64) {
	c.leafCount.Set(float64(n))
}

func (c *Collector) CommitNodes(n int) {
	c.commitNodes.Set(float64(n))
}

func (c *Collector) StaleNodes(n int) {
	c.staleNodes.Set(float64(n))
}

func (c *Collector) RevertedTo(ver uint64) {
	c.revertedTo.Set(float64(ver))
}

func (c *Collector) PrunedTo(ver uint64) {
	c.prunedTo.Set(float64(ver))
}
