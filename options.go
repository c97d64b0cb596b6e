package rsmt

import (
	"github.com/pbnjay/memory"

	"github.com/zkrollup-labs/rsmt/metrics"
)

const (
	minCacheEntries = 1 << 10
	maxCacheEntries = 1 << 20

	// rough per-entry footprint used to derive the default cache size from
	// the machine's total memory: a decoded internal node with sixteen
	// populated children.
	cacheEntryWeight = 1 << 10
)

// Option is a function that configures the tree.
type Option func(*MerkleStateTree)

// WithHasher overrides the default sha256 hasher pool.
func WithHasher(hasher *Hasher) Option {
	return func(tree *MerkleStateTree) {
		tree.hasher = hasher
	}
}

// WithCacheSize bounds the decoded node cache to the given number of
// entries.
func WithCacheSize(entries int) Option {
	return func(tree *MerkleStateTree) {
		if entries > 0 {
			tree.cacheSize = entries
		}
	}
}

// EnableMetrics attaches a metrics collector to the tree.
func EnableMetrics(collector metrics.Metrics) Option {
	return func(tree *MerkleStateTree) {
		tree.metrics = collector
	}
}

// defaultCacheSize sizes the node cache at roughly 1/64th of total memory.
func defaultCacheSize() int {
	entries := int(memory.TotalMemory() / 64 / cacheEntryWeight)
	if entries < minCacheEntries {
		return minCacheEntries
	}
	if entries > maxCacheEntries {
		return maxCacheEntries
	}
	return entries
}
