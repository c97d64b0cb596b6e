// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"hash"
	"sync"
)

// Domain separation tags. Internal and leaf hashes must never collide on
// their preimages, otherwise a leaf encoding could be reinterpreted as an
// internal node.
var (
	internalHashTag = []byte{0}
	leafHashTag     = []byte{1}
)

func NewHasher(hasher hash.Hash) *Hasher {
	return &Hasher{
		newHash: nil,
		hasher:  hasher,
	}
}

// NewHasherPool builds a Hasher backed by a sync.Pool so that it can be
// shared between goroutines, e.g. by the consistency checker workers.
func NewHasherPool(newHash func() hash.Hash) *Hasher {
	h := &Hasher{newHash: newHash}
	h.pool.New = func() interface{} {
		return newHash()
	}
	return h
}

type Hasher struct {
	newHash func() hash.Hash
	pool    sync.Pool

	mu     sync.Mutex
	hasher hash.Hash
}

func (h *Hasher) Hash(inputs ...[]byte) []byte {
	if h.newHash != nil {
		hasher := h.pool.Get().(hash.Hash)
		defer h.pool.Put(hasher)
		hasher.Reset()
		for i := range inputs {
			hasher.Write(inputs[i])
		}
		return hasher.Sum(nil)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.hasher.Reset()
	for i := range inputs {
		h.hasher.Write(inputs[i])
	}
	return h.hasher.Sum(nil)
}

// Size returns the digest size in bytes.
func (h *Hasher) Size() int {
	if h.newHash != nil {
		return h.newHash().Size()
	}
	return h.hasher.Size()
}

func (h *Hasher) hashInternal(left, right []byte) []byte {
	return h.Hash(internalHashTag, left, right)
}

func (h *Hasher) hashLeaf(key, valueHash []byte) []byte {
	return h.Hash(leafHashTag, key, valueHash)
}

// nilHashes caches the hash of the empty subtree for every binary depth of
// the tree. Index 0 is the root of a fully empty tree, index maxBinaryDepth
// is the hash of an unoccupied leaf slot.
type nilHashes struct {
	hashes [maxBinaryDepth + 1][]byte
}

func newNilHashes(hasher *Hasher) *nilHashes {
	nh := &nilHashes{}
	nh.hashes[maxBinaryDepth] = make([]byte, hasher.Size())
	for depth := maxBinaryDepth - 1; depth >= 0; depth-- {
		child := nh.hashes[depth+1]
		nh.hashes[depth] = hasher.hashInternal(child, child)
	}
	return nh
}

func (nh *nilHashes) Get(binaryDepth int) []byte {
	return nh.hashes[binaryDepth]
}
