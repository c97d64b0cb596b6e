// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/zkrollup-labs/rsmt/database"
	"github.com/zkrollup-labs/rsmt/metrics"
	"github.com/zkrollup-labs/rsmt/utils"
)

var _ StateTree = (*MerkleStateTree)(nil)

// MerkleStateTree is a versioned sparse Merkle tree over a key-value
// backing store. Every commit produces an immutable logical snapshot;
// nodes are append-only and unchanged subtrees are shared by reference
// across versions.
type MerkleStateTree struct {
	db     database.TreeDB
	hasher *Hasher
	nilh   *nilHashes

	cacheSize int
	cache     *lru.Cache
	metrics   metrics.Metrics

	// mu guards the head metadata. Commits assume a single writer; the
	// lock only keeps metadata reads coherent, it does not serialize
	// concurrent commits into a meaningful order.
	mu          sync.RWMutex
	head        Version
	earliest    Version
	initialized bool
}

func NewMerkleStateTree(db database.TreeDB, opts ...Option) (*MerkleStateTree, error) {
	tree := &MerkleStateTree{
		db:        db,
		cacheSize: defaultCacheSize(),
	}
	for _, opt := range opts {
		opt(tree)
	}
	if tree.hasher == nil {
		tree.hasher = NewHasherPool(func() hash.Hash { return sha256.New() })
	}
	tree.nilh = newNilHashes(tree.hasher)

	cache, err := lru.New(tree.cacheSize)
	if err != nil {
		return nil, err
	}
	tree.cache = cache

	if err := tree.loadManifest(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (t *MerkleStateTree) loadManifest() error {
	buf, err := t.db.Get(manifestKey())
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil
		}
		return errors.Wrap(err, "read manifest")
	}
	head, earliest, err := decodeManifest(buf)
	if err != nil {
		return err
	}
	t.head = head
	t.earliest = earliest
	t.initialized = true
	return nil
}

// LatestVersion returns the last committed version. The second return is
// false when no version has ever been committed.
func (t *MerkleStateTree) LatestVersion() (Version, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head, t.initialized
}

// EarliestVersion returns the oldest version still readable, which moves
// forward when history is pruned.
func (t *MerkleStateTree) EarliestVersion() (Version, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.earliest, t.initialized
}

type commitContext struct {
	version      Version
	batch        database.Batcher
	stale        [][]byte
	nodesWritten int
	leavesAdded  uint64
	leavesGone   uint64
}

func (ctx *commitContext) writeNode(t *MerkleStateTree, depth uint8, path []byte, node Node) error {
	buf, err := EncodeNode(node)
	if err != nil {
		return err
	}
	addr := nodeAddress(ctx.version, depth, path)
	if err := ctx.batch.Set(addr, buf); err != nil {
		return errors.Wrap(err, "batch node write")
	}
	ctx.nodesWritten++
	t.cache.Add(string(addr), node)
	return nil
}

// Commit applies one block's state diff and persists every new node, the
// version's root index entry, its stale address list and the manifest in a
// single atomic batch. The resulting root hash is a deterministic function
// of the previous state and the ordered changes.
func (t *MerkleStateTree) Commit(version Version, changes []Change) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		if version != t.head+1 {
			return nil, errors.Wrapf(ErrVersionOutOfOrder, "version %d, head %d", version, t.head)
		}
	} else if version != 0 {
		return nil, errors.Wrapf(ErrVersionOutOfOrder, "genesis commit must be version 0, got %d", version)
	}

	ordered, err := normalizeChanges(changes)
	if err != nil {
		return nil, err
	}

	var (
		prevRef   *ChildRef
		leafCount uint64
	)
	if t.initialized {
		entry, err := t.rootEntry(t.head)
		if err != nil {
			return nil, err
		}
		prevRef = entry.rootRef()
		leafCount = entry.LeafCount
	}

	ctx := &commitContext{
		version: version,
		batch:   t.db.NewBatch(),
	}

	newRef := prevRef
	if len(ordered) > 0 {
		newRef, err = t.update(ctx, prevRef, 0, nil, ordered)
		if err != nil {
			return nil, err
		}
	}

	entry := &RootEntry{
		RootVersion: 0,
		RootHash:    nil,
		LeafCount:   leafCount + ctx.leavesAdded - ctx.leavesGone,
	}
	rootHash := t.nilh.Get(0)
	if newRef != nil {
		entry.RootVersion = uint64(newRef.Version)
		entry.RootHash = newRef.Hash
		rootHash = newRef.Hash
	}

	entryBuf, err := encodeRootEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := ctx.batch.Set(rootIndexKey(version), entryBuf); err != nil {
		return nil, errors.Wrap(err, "batch root entry write")
	}
	if len(ctx.stale) > 0 {
		staleBuf, err := encodeStaleList(ctx.stale)
		if err != nil {
			return nil, err
		}
		if err := ctx.batch.Set(staleIndexKey(version), staleBuf); err != nil {
			return nil, errors.Wrap(err, "batch stale list write")
		}
	}
	manifestBuf, err := encodeManifest(version, t.earliest)
	if err != nil {
		return nil, err
	}
	if err := ctx.batch.Set(manifestKey(), manifestBuf); err != nil {
		return nil, errors.Wrap(err, "batch manifest write")
	}

	if err := ctx.batch.Write(); err != nil {
		return nil, errors.Wrap(err, "commit batch write")
	}

	t.head = version
	t.initialized = true

	if t.metrics != nil {
		t.metrics.Version(uint64(version))
		t.metrics.EarliestVersion(uint64(t.earliest))
		t.metrics.LeafCount(entry.LeafCount)
		t.metrics.CommitNodes(ctx.nodesWritten)
		t.metrics.StaleNodes(len(ctx.stale))
	}
	return rootHash, nil
}

// update clones the path from ref down to every changed leaf, writing the
// new nodes under the committing version and recording replaced node
// addresses in the stale list. A nil return reference means the subtree
// became empty.
func (t *MerkleStateTree) update(ctx *commitContext, ref *ChildRef, depth uint8, path []byte, changes []Change) (*ChildRef, error) {
	if depth == keyNibbles {
		return t.updateLeaf(ctx, ref, path, changes[len(changes)-1])
	}

	node := &InternalNode{}
	if ref != nil {
		existing, err := t.loadInternal(ref.Version, depth, path)
		if err != nil {
			return nil, err
		}
		node = existing.copy()
		ctx.stale = append(ctx.stale, nodeAddress(ref.Version, depth, path))
	}

	for i := 0; i < len(changes); {
		nib := nibbleAt(changes[i].Key, depth)
		j := i
		for j < len(changes) && nibbleAt(changes[j].Key, depth) == nib {
			j++
		}
		childPath := append(path[:len(path):len(path)], nib)
		childRef, err := t.update(ctx, node.Children[nib], depth+1, childPath, changes[i:j])
		if err != nil {
			return nil, err
		}
		node.Children[nib] = childRef
		i = j
	}

	if node.empty() {
		return nil, nil
	}
	if err := ctx.writeNode(t, depth, path, node); err != nil {
		return nil, err
	}
	return &ChildRef{
		Version: ctx.version,
		Hash:    node.hashWith(t.hasher, t.nilh, depth),
	}, nil
}

func (t *MerkleStateTree) updateLeaf(ctx *commitContext, ref *ChildRef, path []byte, change Change) (*ChildRef, error) {
	if ref != nil {
		ctx.stale = append(ctx.stale, nodeAddress(ref.Version, keyNibbles, path))
	}
	if change.Delete {
		if ref != nil {
			ctx.leavesGone++
		}
		return nil, nil
	}
	if ref == nil {
		ctx.leavesAdded++
	}
	leaf := &LeafNode{
		Key:       change.Key,
		ValueHash: t.hasher.Hash(change.Value),
		Value:     change.Value,
		Version:   ctx.version,
	}
	if err := ctx.writeNode(t, keyNibbles, path, leaf); err != nil {
		return nil, err
	}
	return &ChildRef{
		Version: ctx.version,
		Hash:    leaf.hashWith(t.hasher),
	}, nil
}

// Get returns the value of key as of the given version. The descent only
// follows child references whose last-modified version is at or below the
// requested one, by construction of the root index entry.
func (t *MerkleStateTree) Get(key []byte, version Version) ([]byte, error) {
	if !validKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "key length %d", len(key))
	}
	entry, err := t.rootEntry(version)
	if err != nil {
		return nil, err
	}
	ref := entry.rootRef()
	for depth := uint8(0); depth < keyNibbles; depth++ {
		if ref == nil {
			return nil, errors.Wrapf(ErrKeyNotFound, "key %x at version %d", key, version)
		}
		node, err := t.loadInternal(ref.Version, depth, pathOfKey(key, depth))
		if err != nil {
			return nil, err
		}
		ref = node.Children[nibbleAt(key, depth)]
	}
	if ref == nil {
		return nil, errors.Wrapf(ErrKeyNotFound, "key %x at version %d", key, version)
	}
	leaf, err := t.loadLeaf(ref.Version, pathOfKey(key, keyNibbles))
	if err != nil {
		return nil, err
	}
	if !sameKey(leaf.Key, key) {
		return nil, errors.Wrapf(ErrCorruptNode, "leaf key %x stored under path of %x", leaf.Key, key)
	}
	return utils.CopyBytes(leaf.Value), nil
}

// RootHash returns the root hash recorded for the given version.
func (t *MerkleStateTree) RootHash(version Version) ([]byte, error) {
	entry, err := t.rootEntry(version)
	if err != nil {
		return nil, err
	}
	if len(entry.RootHash) == 0 {
		return utils.CopyBytes(t.nilh.Get(0)), nil
	}
	return utils.CopyBytes(entry.RootHash), nil
}

// LeafCount returns the number of live keys at the given version.
func (t *MerkleStateTree) LeafCount(version Version) (uint64, error) {
	entry, err := t.rootEntry(version)
	if err != nil {
		return 0, err
	}
	return entry.LeafCount, nil
}

func (t *MerkleStateTree) rootEntry(version Version) (*RootEntry, error) {
	buf, err := t.db.Get(rootIndexKey(version))
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, errors.Wrapf(ErrVersionNotFound, "version %d", version)
		}
		return nil, errors.Wrap(err, "read root entry")
	}
	return decodeRootEntry(buf)
}

func (t *MerkleStateTree) loadNode(version Version, depth uint8, path []byte) (Node, error) {
	addr := nodeAddress(version, depth, path)
	if cached, ok := t.cache.Get(string(addr)); ok {
		return cached.(Node), nil
	}
	buf, err := t.db.Get(addr)
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return nil, errors.Wrapf(ErrMissingNode, "address %x", addr)
		}
		return nil, errors.Wrap(err, "read node")
	}
	node, err := DecodeNode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "address %x", addr)
	}
	t.cache.Add(string(addr), node)
	return node, nil
}

func (t *MerkleStateTree) loadInternal(version Version, depth uint8, path []byte) (*InternalNode, error) {
	node, err := t.loadNode(version, depth, path)
	if err != nil {
		return nil, err
	}
	internal, ok := node.(*InternalNode)
	if !ok {
		return nil, errors.Wrapf(ErrCorruptNode, "internal node expected at depth %d", depth)
	}
	return internal, nil
}

func (t *MerkleStateTree) loadLeaf(version Version, path []byte) (*LeafNode, error) {
	node, err := t.loadNode(version, keyNibbles, path)
	if err != nil {
		return nil, err
	}
	leaf, ok := node.(*LeafNode)
	if !ok {
		return nil, errors.Wrap(ErrCorruptNode, "leaf node expected at leaf depth")
	}
	return leaf, nil
}

// pathOfKey expands the first depth nibbles of key into one nibble per
// byte, the path representation used while descending.
func pathOfKey(key []byte, depth uint8) []byte {
	path := make([]byte, depth)
	for d := uint8(0); d < depth; d++ {
		path[d] = nibbleAt(key, d)
	}
	return path
}

// normalizeChanges deduplicates keys (last occurrence wins) and orders the
// result, making the commit outcome independent of duplicate placement.
func normalizeChanges(changes []Change) ([]Change, error) {
	index := make(map[string]int, len(changes))
	ordered := make([]Change, 0, len(changes))
	for _, change := range changes {
		if !validKey(change.Key) {
			return nil, errors.Wrapf(ErrInvalidKey, "key length %d", len(change.Key))
		}
		owned := Change{
			Key:    utils.CopyBytes(change.Key),
			Value:  utils.CopyBytes(change.Value),
			Delete: change.Delete,
		}
		if at, ok := index[string(change.Key)]; ok {
			ordered[at] = owned
			continue
		}
		index[string(change.Key)] = len(ordered)
		ordered = append(ordered, owned)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].Key, ordered[j].Key) < 0
	})
	return ordered, nil
}
