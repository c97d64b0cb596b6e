package metrics

type Metrics interface {
	// The last committed version
	Version(uint64)
	// The oldest version still readable
	EarliestVersion(uint64)
	// The number of live keys at the head version
	LeafCount(uint64)
	// The number of nodes written by the last commit
	CommitNodes(int)
	// The number of node addresses staled by the last commit
	StaleNodes(int)
	// The target of the last completed revert
	RevertedTo(uint64)
	// The retention bound of the last completed prune
	PrunedTo(uint64)
}
