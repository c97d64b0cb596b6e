// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/zkrollup-labs/rsmt/utils"
)

// Proof is an ordered sequence of sibling hashes from the leaf slot up to
// the root, one per binary level. It proves either the inclusion of a
// key/value pair or the absence of a key under a given root hash.
type Proof struct {
	Siblings [][]byte
}

// Prove builds a Merkle proof for key at the given version. When the key
// is absent the proof commits to an empty leaf slot and verifies with a
// nil value.
func (t *MerkleStateTree) Prove(key []byte, version Version) (*Proof, error) {
	if !validKey(key) {
		return nil, errors.Wrapf(ErrInvalidKey, "key length %d", len(key))
	}
	entry, err := t.rootEntry(version)
	if err != nil {
		return nil, err
	}

	// Collected root to leaf, assembled leaf to root below.
	siblings := make([][]byte, 0, maxBinaryDepth)

	ref := entry.rootRef()
	depth := uint8(0)
	for ; depth < keyNibbles && ref != nil; depth++ {
		node, err := t.loadInternal(ref.Version, depth, pathOfKey(key, depth))
		if err != nil {
			return nil, err
		}
		nibble := int(nibbleAt(key, depth))
		_, nodeSiblings := node.merklePath(t.hasher, t.nilh, depth, nibble)
		// merklePath returns bottom-up, the root-down collection wants
		// the node's top level first.
		for step := 3; step >= 0; step-- {
			siblings = append(siblings, nodeSiblings[step])
		}
		ref = node.Children[nibble]
	}

	// The descent stopped at an empty subtree (or walked past the leaf):
	// every remaining level pairs with an empty-subtree hash.
	for level := int(depth) * 4; level < maxBinaryDepth; level++ {
		siblings = append(siblings, t.nilh.Get(level + 1))
	}

	return &Proof{Siblings: utils.ReverseBytes(siblings)}, nil
}

// VerifyProof checks a proof against a root hash without touching the
// store. A nil value asserts the absence of key under the root. The hasher
// must match the one the tree was built with.
func VerifyProof(hasher *Hasher, rootHash, key, value []byte, proof *Proof) bool {
	if proof == nil || len(proof.Siblings) != maxBinaryDepth || !validKey(key) {
		return false
	}
	var current []byte
	if value == nil {
		current = make([]byte, hasher.Size())
	} else {
		current = hasher.hashLeaf(key, hasher.Hash(value))
	}
	for i, sibling := range proof.Siblings {
		level := maxBinaryDepth - 1 - i
		if bitAt(key, level) == 0 {
			current = hasher.hashInternal(current, sibling)
		} else {
			current = hasher.hashInternal(sibling, current)
		}
	}
	return bytes.Equal(current, rootHash)
}
