// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"bytes"
)

const (
	// KeySize is the fixed key width in bytes. Keys address leaf slots of a
	// sparse Merkle tree of binary depth 256, traversed most significant
	// bit first.
	KeySize = 32

	// keyNibbles is the number of radix-16 levels between the root and the
	// leaves. Internal nodes live at nibble depths 0..keyNibbles-1, leaves
	// at depth keyNibbles.
	keyNibbles = KeySize * 2

	// maxBinaryDepth is the depth of the equivalent binary tree. Each
	// internal node covers four binary levels.
	maxBinaryDepth = keyNibbles * 4

	branchWidth = 16
)

type NodeKind byte

const (
	KindLeaf     NodeKind = 0x01
	KindInternal NodeKind = 0x02
)

// Node is a decoded tree node, either *LeafNode or *InternalNode.
type Node interface {
	Kind() NodeKind
}

// ChildRef points at a child node through its last-modified version. The
// version, together with the child's path, determines the child's storage
// address, so a node written once can be shared by every later version
// whose commit did not touch this subtree.
type ChildRef struct {
	Version Version
	Hash    []byte
}

// LeafNode holds one key/value pair. Version records the commit that last
// wrote this value. The full value is kept inline so that Get can serve it
// without a secondary lookup, while the tree hash only commits to ValueHash.
type LeafNode struct {
	Key       []byte
	ValueHash []byte
	Value     []byte
	Version   Version
}

func (n *LeafNode) Kind() NodeKind { return KindLeaf }

func (n *LeafNode) hashWith(hasher *Hasher) []byte {
	return hasher.hashLeaf(n.Key, n.ValueHash)
}

// InternalNode is a radix-16 branch node. A nil child reference stands for
// an empty subtree.
type InternalNode struct {
	Children [branchWidth]*ChildRef
}

func (n *InternalNode) Kind() NodeKind { return KindInternal }

func (n *InternalNode) copy() *InternalNode {
	copied := &InternalNode{}
	for i := range n.Children {
		copied.Children[i] = n.Children[i]
	}
	return copied
}

func (n *InternalNode) empty() bool {
	for i := range n.Children {
		if n.Children[i] != nil {
			return false
		}
	}
	return true
}

// childHashes resolves the sixteen child slots into concrete hashes, using
// the empty-subtree hash of the children's binary depth for vacant slots.
func (n *InternalNode) childHashes(nilh *nilHashes, depth uint8) [branchWidth][]byte {
	var hashes [branchWidth][]byte
	nilChild := nilh.Get(int(depth)*4 + 4)
	for i := range n.Children {
		if n.Children[i] != nil {
			hashes[i] = n.Children[i].Hash
		} else {
			hashes[i] = nilChild
		}
	}
	return hashes
}

// hashWith folds the sixteen child hashes through the node's four binary
// levels and returns the node hash.
func (n *InternalNode) hashWith(hasher *Hasher, nilh *nilHashes, depth uint8) []byte {
	level := n.childHashes(nilh, depth)
	width := branchWidth
	for width > 1 {
		for i := 0; i < width; i += 2 {
			level[i/2] = hasher.hashInternal(level[i], level[i+1])
		}
		width /= 2
	}
	return level[0]
}

// merklePath returns the node hash together with the four sibling hashes
// the given nibble needs for a binary Merkle proof, ordered bottom-up
// (deepest binary level first).
func (n *InternalNode) merklePath(hasher *Hasher, nilh *nilHashes, depth uint8, nibble int) ([]byte, [4][]byte) {
	var siblings [4][]byte
	level := n.childHashes(nilh, depth)
	width := branchWidth
	index := nibble
	for step := 0; width > 1; step++ {
		siblings[step] = level[index^1]
		for i := 0; i < width; i += 2 {
			level[i/2] = hasher.hashInternal(level[i], level[i+1])
		}
		width /= 2
		index /= 2
	}
	return level[0], siblings
}

// nibbleAt extracts the radix-16 branch index for the given nibble depth,
// most significant nibble first.
func nibbleAt(key []byte, depth uint8) byte {
	b := key[depth/2]
	if depth%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// bitAt extracts the routing bit for the given binary depth, most
// significant bit first.
func bitAt(key []byte, binaryDepth int) byte {
	return (key[binaryDepth/8] >> (7 - uint(binaryDepth)%8)) & 1
}

func validKey(key []byte) bool {
	return len(key) == KeySize
}

func sameKey(a, b []byte) bool {
	return bytes.Equal(a, b)
}
