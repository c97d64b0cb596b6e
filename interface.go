// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

type (
	// Version identifies one committed block's state snapshot.
	Version uint64

	// Change is one key/value mutation inside a commit. Delete removes the
	// key; Value is ignored when Delete is set. When a commit contains the
	// same key more than once the last occurrence wins.
	Change struct {
		Key    []byte
		Value  []byte
		Delete bool
	}

	// StateTree is the versioned Merkle state tree consumed by the block
	// processing pipeline. Commits must arrive from a single writer; reads
	// at committed versions are safe concurrently with commits. RevertTo
	// and Prune require exclusive access to the backing store (no commit
	// in flight); this is an operational contract, not an in-process lock.
	StateTree interface {
		// Commit applies one block's ordered state diff as the given
		// version and returns the new root hash. The version must be 0 on
		// an empty tree and exactly head+1 afterwards.
		Commit(version Version, changes []Change) ([]byte, error)
		// Get returns the value of key as of the given version.
		Get(key []byte, version Version) ([]byte, error)
		// RootHash returns the root hash recorded for the given version.
		RootHash(version Version) ([]byte, error)
		// LeafCount returns the number of live keys at the given version.
		LeafCount(version Version) (uint64, error)
		// Prove builds a Merkle inclusion (or absence) proof for key at
		// the given version, verifiable without store access.
		Prove(key []byte, version Version) (*Proof, error)
		LatestVersion() (Version, bool)
		EarliestVersion() (Version, bool)
		// RevertTo truncates all versions above target and reinstates
		// target as the head.
		RevertTo(target Version) error
		// Prune drops all versions below oldestRetained and reclaims the
		// nodes no retained version can reach.
		Prune(oldestRetained Version) error
	}
)
