// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"github.com/pkg/errors"
)

// RevertTo truncates every version above target, one version at a time
// from the head downwards. Each step removes the version's nodes, its root
// index entry and its stale list, and moves the manifest head in a single
// atomic batch, so an interrupted revert resumes from the last completed
// version on the next call.
//
// The reverter needs exclusive access to the store: no commit may be in
// flight while it runs. Run it with the writer stopped.
func (t *MerkleStateTree) RevertTo(target Version) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return errors.Wrapf(ErrTargetVersionNotFound, "version %d on an empty tree", target)
	}
	if target >= t.head {
		return errors.Wrapf(ErrTargetAheadOfHead, "target %d, head %d", target, t.head)
	}
	if _, err := t.rootEntry(target); err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return errors.Wrapf(ErrTargetVersionNotFound, "version %d", target)
		}
		return err
	}

	for version := t.head; version > target; version-- {
		if err := t.dropVersion(version); err != nil {
			return err
		}
		t.head = version - 1
	}

	// Deleted nodes may still be cached.
	t.cache.Purge()

	if t.metrics != nil {
		t.metrics.Version(uint64(t.head))
		t.metrics.RevertedTo(uint64(target))
	}
	return nil
}

// dropVersion deletes everything version owns: all nodes it wrote, its
// root index entry and its stale list.
func (t *MerkleStateTree) dropVersion(version Version) error {
	addresses, err := t.versionNodeAddresses(version)
	if err != nil {
		return err
	}

	batch := t.db.NewBatch()
	for _, addr := range addresses {
		if err := batch.Delete(addr); err != nil {
			return errors.Wrap(err, "batch node delete")
		}
	}
	if err := batch.Delete(rootIndexKey(version)); err != nil {
		return errors.Wrap(err, "batch root entry delete")
	}
	if err := batch.Delete(staleIndexKey(version)); err != nil {
		return errors.Wrap(err, "batch stale list delete")
	}
	manifestBuf, err := encodeManifest(version-1, t.earliest)
	if err != nil {
		return err
	}
	if err := batch.Set(manifestKey(), manifestBuf); err != nil {
		return errors.Wrap(err, "batch manifest write")
	}
	if err := batch.Write(); err != nil {
		return errors.Wrapf(err, "revert batch write for version %d", version)
	}
	return nil
}

// versionNodeAddresses scans the node namespace for every address written
// by the given version.
func (t *MerkleStateTree) versionNodeAddresses(version Version) ([][]byte, error) {
	it := t.db.NewIterator(nodeVersionPrefix(version))
	defer it.Release()

	var addresses [][]byte
	for it.Next() {
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		addresses = append(addresses, key)
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate version nodes")
	}
	return addresses, nil
}
