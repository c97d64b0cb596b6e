// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/zkrollup-labs/rsmt/database"
)

// FaultKind classifies a finding of the consistency checker.
type FaultKind int

const (
	FaultHashMismatch FaultKind = iota + 1
	FaultMissingNode
	FaultDecodeError
)

func (k FaultKind) String() string {
	switch k {
	case FaultHashMismatch:
		return "hash-mismatch"
	case FaultMissingNode:
		return "missing-node"
	case FaultDecodeError:
		return "decode-error"
	default:
		return fmt.Sprintf("fault(%d)", int(k))
	}
}

// Fault is one independent inconsistency found during a check. Expected
// and Actual are only set for hash mismatches.
type Fault struct {
	Kind     FaultKind
	Address  []byte
	Expected []byte
	Actual   []byte
	Reason   string
}

func (f Fault) String() string {
	switch f.Kind {
	case FaultHashMismatch:
		return fmt.Sprintf("%s at %x: expected %x, got %x", f.Kind, f.Address, f.Expected, f.Actual)
	default:
		return fmt.Sprintf("%s at %x: %s", f.Kind, f.Address, f.Reason)
	}
}

// VersionResult is the checker's verdict for a single version.
type VersionResult struct {
	Version  Version
	RootHash []byte
	Faults   []Fault
}

func (r *VersionResult) Ok() bool {
	return len(r.Faults) == 0
}

// Report collects the per-version results of one checker run.
type Report struct {
	Results []VersionResult
}

func (r *Report) Ok() bool {
	return r.FaultCount() == 0
}

func (r *Report) FaultCount() int {
	total := 0
	for i := range r.Results {
		total += len(r.Results[i].Faults)
	}
	return total
}

// CheckObserver is notified about the progress of a checker run.
// Implementations must tolerate concurrent Progress calls when the check
// runs with parallelism above one.
type CheckObserver interface {
	StartCheck()
	Progress(msg string)
	EndCheck(err error)
}

// NilCheckObserver ignores all reported events.
type NilCheckObserver struct{}

func (NilCheckObserver) StartCheck()     {}
func (NilCheckObserver) Progress(string) {}
func (NilCheckObserver) EndCheck(error)  {}

// CheckOptions configures a checker run over the closed version range
// [From, To].
type CheckOptions struct {
	From Version
	To   Version

	// ExpectedRoots optionally pins versions to externally known root
	// hashes (e.g. the commitments posted on L1).
	ExpectedRoots map[Version][]byte

	// Parallelism bounds the number of versions verified concurrently.
	// Zero or one runs sequentially.
	Parallelism int

	Observer CheckObserver

	// Hasher must match the hasher the tree was built with. Defaults to
	// the sha256 pool.
	Hasher *Hasher
}

// Check verifies that the persisted nodes reconstruct the recorded root
// hash of every version in the range. It never mutates the store, never
// stops at the first fault, and only fails as a whole on its own storage
// I/O errors. Already-committed data is immutable, so the check may run
// next to a live writer; it reads through a store snapshot when the
// backend provides one.
func Check(db database.TreeDB, opts CheckOptions) (*Report, error) {
	if opts.To < opts.From {
		return nil, errors.Wrapf(ErrVersionNotFound, "empty check range [%d, %d]", opts.From, opts.To)
	}
	observer := opts.Observer
	if observer == nil {
		observer = NilCheckObserver{}
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = NewHasherPool(func() hash.Hash { return sha256.New() })
	}

	var reader database.KeyValueReader = db
	snapshot, err := db.Snapshot()
	switch {
	case err == nil:
		defer snapshot.Release()
		reader = snapshot
	case errors.Is(err, database.ErrSnapshotNotSupported):
		// Fall back to direct reads.
	default:
		return nil, errors.Wrap(err, "acquire store snapshot")
	}

	checker := &consistencyChecker{
		reader:   reader,
		hasher:   hasher,
		nilh:     newNilHashes(hasher),
		observer: observer,
	}

	observer.StartCheck()
	report, err := checker.run(opts)
	observer.EndCheck(err)
	return report, err
}

type consistencyChecker struct {
	reader   database.KeyValueReader
	hasher   *Hasher
	nilh     *nilHashes
	observer CheckObserver

	// clean remembers node addresses whose whole subtree already verified,
	// so subtrees shared across versions are walked once per run.
	clean sync.Map
}

func (c *consistencyChecker) run(opts CheckOptions) (*Report, error) {
	count := int(opts.To-opts.From) + 1
	results := make([]VersionResult, count)

	var (
		fatalOnce sync.Once
		fatal     error
	)
	verify := func(i int) {
		version := opts.From + Version(i)
		result, err := c.checkVersion(version, opts.ExpectedRoots[version])
		if err != nil {
			fatalOnce.Do(func() { fatal = err })
			return
		}
		results[i] = *result
		c.observer.Progress(fmt.Sprintf("version %d: %d faults", version, len(result.Faults)))
	}

	if opts.Parallelism > 1 {
		pool, err := ants.NewPool(opts.Parallelism)
		if err != nil {
			return nil, err
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i := 0; i < count; i++ {
			i := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				verify(i)
			}); err != nil {
				wg.Done()
				fatalOnce.Do(func() { fatal = err })
			}
		}
		wg.Wait()
	} else {
		for i := 0; i < count; i++ {
			verify(i)
			if fatal != nil {
				break
			}
		}
	}

	if fatal != nil {
		return nil, fatal
	}
	return &Report{Results: results}, nil
}

func (c *consistencyChecker) checkVersion(version Version, expectedRoot []byte) (*VersionResult, error) {
	result := &VersionResult{Version: version}

	rootKey := rootIndexKey(version)
	buf, err := c.reader.Get(rootKey)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			result.Faults = append(result.Faults, Fault{
				Kind:    FaultMissingNode,
				Address: rootKey,
				Reason:  "no root index entry for this version",
			})
			return result, nil
		}
		return nil, errors.Wrap(err, "read root entry")
	}
	entry, err := decodeRootEntry(buf)
	if err != nil {
		result.Faults = append(result.Faults, Fault{
			Kind:    FaultDecodeError,
			Address: rootKey,
			Reason:  err.Error(),
		})
		return result, nil
	}

	result.RootHash = entry.RootHash
	ref := entry.rootRef()
	if ref == nil {
		result.RootHash = c.nilh.Get(0)
	} else {
		if ref.Version > version {
			result.Faults = append(result.Faults, Fault{
				Kind:    FaultHashMismatch,
				Address: rootKey,
				Reason:  fmt.Sprintf("root node version %d is ahead of version %d", ref.Version, version),
			})
		}
		if err := c.walk(result, ref, 0, nil); err != nil {
			return nil, err
		}
	}

	if len(expectedRoot) > 0 && !bytes.Equal(expectedRoot, result.RootHash) {
		result.Faults = append(result.Faults, Fault{
			Kind:     FaultHashMismatch,
			Address:  rootKey,
			Expected: expectedRoot,
			Actual:   result.RootHash,
		})
	}
	return result, nil
}

// walk recomputes the hash of the node behind ref, compares it against the
// hash the parent recorded, and recurses. Faults are collected, not
// returned; only the checker's own read failures abort the walk.
func (c *consistencyChecker) walk(result *VersionResult, ref *ChildRef, depth uint8, path []byte) error {
	addr := nodeAddress(ref.Version, depth, path)
	if c.isClean(addr, ref.Hash) {
		return nil
	}

	buf, err := c.reader.Get(addr)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			result.Faults = append(result.Faults, Fault{
				Kind:    FaultMissingNode,
				Address: addr,
				Reason:  "referenced node absent from store",
			})
			return nil
		}
		return errors.Wrap(err, "read node")
	}
	node, err := DecodeNode(buf)
	if err != nil {
		result.Faults = append(result.Faults, Fault{
			Kind:    FaultDecodeError,
			Address: addr,
			Reason:  err.Error(),
		})
		return nil
	}

	faultsBefore := len(result.Faults)
	switch n := node.(type) {
	case *InternalNode:
		if depth >= keyNibbles {
			result.Faults = append(result.Faults, Fault{
				Kind:    FaultDecodeError,
				Address: addr,
				Reason:  "internal node stored at leaf depth",
			})
			return nil
		}
		actual := n.hashWith(c.hasher, c.nilh, depth)
		if !bytes.Equal(actual, ref.Hash) {
			result.Faults = append(result.Faults, Fault{
				Kind:     FaultHashMismatch,
				Address:  addr,
				Expected: ref.Hash,
				Actual:   actual,
			})
		}
		for nib := 0; nib < branchWidth; nib++ {
			child := n.Children[nib]
			if child == nil {
				continue
			}
			if child.Version > ref.Version {
				result.Faults = append(result.Faults, Fault{
					Kind:    FaultHashMismatch,
					Address: addr,
					Reason:  fmt.Sprintf("child %d version %d is ahead of node version %d", nib, child.Version, ref.Version),
				})
			}
			childPath := append(path[:len(path):len(path)], byte(nib))
			if err := c.walk(result, child, depth+1, childPath); err != nil {
				return err
			}
		}
	case *LeafNode:
		if depth != keyNibbles {
			result.Faults = append(result.Faults, Fault{
				Kind:    FaultDecodeError,
				Address: addr,
				Reason:  "leaf node stored at internal depth",
			})
			return nil
		}
		c.checkLeaf(result, addr, ref, n, path)
	}

	if len(result.Faults) == faultsBefore {
		c.markClean(addr, ref.Hash)
	}
	return nil
}

func (c *consistencyChecker) checkLeaf(result *VersionResult, addr []byte, ref *ChildRef, leaf *LeafNode, path []byte) {
	if !validKey(leaf.Key) || !bytes.Equal(pathOfKey(leaf.Key, keyNibbles), path) {
		result.Faults = append(result.Faults, Fault{
			Kind:    FaultDecodeError,
			Address: addr,
			Reason:  fmt.Sprintf("leaf key %x does not match its storage path", leaf.Key),
		})
		return
	}
	valueHash := c.hasher.Hash(leaf.Value)
	if !bytes.Equal(valueHash, leaf.ValueHash) {
		result.Faults = append(result.Faults, Fault{
			Kind:     FaultHashMismatch,
			Address:  addr,
			Expected: leaf.ValueHash,
			Actual:   valueHash,
		})
	}
	actual := leaf.hashWith(c.hasher)
	if !bytes.Equal(actual, ref.Hash) {
		result.Faults = append(result.Faults, Fault{
			Kind:     FaultHashMismatch,
			Address:  addr,
			Expected: ref.Hash,
			Actual:   actual,
		})
	}
}

func cleanKey(addr, hash []byte) string {
	return string(addr) + "|" + string(hash)
}

func (c *consistencyChecker) isClean(addr, hash []byte) bool {
	_, ok := c.clean.Load(cleanKey(addr, hash))
	return ok
}

func (c *consistencyChecker) markClean(addr, hash []byte) {
	c.clean.Store(cleanKey(addr, hash), struct{}{})
}
