// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"github.com/pkg/errors"

	"github.com/zkrollup-labs/rsmt/database"
)

// Prune drops every version below oldestRetained and physically reclaims
// the nodes no retained version can reach: exactly the addresses the
// stale lists recorded at versions up to and including oldestRetained,
// since a node replaced at version w is unreachable from every root at or
// above w. Versions at and above oldestRetained stay fully readable.
//
// Like the reverter, pruning processes one version per atomic batch and
// advances the manifest's earliest marker with it, so an interrupted run
// resumes where it stopped. It requires the same exclusive access as
// RevertTo.
func (t *MerkleStateTree) Prune(oldestRetained Version) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return errors.Wrapf(ErrVersionNotFound, "prune on an empty tree")
	}
	if oldestRetained > t.head {
		return errors.Wrapf(ErrVersionNotFound, "oldest retained %d is beyond head %d", oldestRetained, t.head)
	}
	if oldestRetained <= t.earliest {
		return nil
	}

	for version := t.earliest; version <= oldestRetained; version++ {
		if err := t.pruneVersion(version, oldestRetained); err != nil {
			return err
		}
		if version < oldestRetained {
			t.earliest = version + 1
		}
	}

	t.cache.Purge()

	if t.metrics != nil {
		t.metrics.EarliestVersion(uint64(t.earliest))
		t.metrics.PrunedTo(uint64(oldestRetained))
	}
	return nil
}

// pruneVersion deletes the nodes staled at version, the stale list itself
// and, for versions below the retention bound, the root index entry.
func (t *MerkleStateTree) pruneVersion(version, oldestRetained Version) error {
	stale, err := t.staleList(version)
	if err != nil {
		return err
	}

	batch := t.db.NewBatch()
	for _, addr := range stale {
		if err := batch.Delete(addr); err != nil {
			return errors.Wrap(err, "batch stale node delete")
		}
	}
	if err := batch.Delete(staleIndexKey(version)); err != nil {
		return errors.Wrap(err, "batch stale list delete")
	}

	earliest := t.earliest
	if version < oldestRetained {
		if err := batch.Delete(rootIndexKey(version)); err != nil {
			return errors.Wrap(err, "batch root entry delete")
		}
		earliest = version + 1
	}
	manifestBuf, err := encodeManifest(t.head, earliest)
	if err != nil {
		return err
	}
	if err := batch.Set(manifestKey(), manifestBuf); err != nil {
		return errors.Wrap(err, "batch manifest write")
	}
	if err := batch.Write(); err != nil {
		return errors.Wrapf(err, "prune batch write for version %d", version)
	}
	return nil
}

func (t *MerkleStateTree) staleList(version Version) ([][]byte, error) {
	buf, err := t.db.Get(staleIndexKey(version))
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read stale list")
	}
	return decodeStaleList(buf)
}
