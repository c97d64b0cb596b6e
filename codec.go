// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// Every persisted record starts with a two byte header: the layout format
// followed by the record kind. The format byte lets future layouts coexist
// with historical data in the same store.
const (
	codecFormatV1 = 0x01

	recordLeaf     = byte(KindLeaf)
	recordInternal = byte(KindInternal)
	recordRoot     = 0x03
	recordStale    = 0x04
	recordManifest = 0x05
)

type storageChild struct {
	Nibble  uint8
	Version uint64
	Hash    []byte
}

type storageInternal struct {
	Children []storageChild
}

type storageLeaf struct {
	Key       []byte
	ValueHash []byte
	Value     []byte
	Version   uint64
}

// RootEntry is the root index record of one version. An empty RootHash
// marks a version whose state is the empty tree.
type RootEntry struct {
	RootVersion uint64
	RootHash    []byte
	LeafCount   uint64
}

func (e *RootEntry) rootRef() *ChildRef {
	if len(e.RootHash) == 0 {
		return nil
	}
	return &ChildRef{Version: Version(e.RootVersion), Hash: e.RootHash}
}

type storageStaleList struct {
	Addresses [][]byte
}

type storageManifest struct {
	Head     uint64
	Earliest uint64
}

func encodeRecord(kind byte, payload interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, errors.Wrap(err, "rlp encode")
	}
	buf := make([]byte, 0, 2+len(body))
	buf = append(buf, codecFormatV1, kind)
	return append(buf, body...), nil
}

func decodeRecord(buf []byte, wantKind byte, payload interface{}) error {
	if len(buf) < 2 {
		return errors.Wrap(ErrCorruptNode, "record too short")
	}
	if buf[0] != codecFormatV1 {
		return errors.Wrapf(ErrCorruptNode, "unknown layout format %#x", buf[0])
	}
	if buf[1] != wantKind {
		return errors.Wrapf(ErrCorruptNode, "record kind %#x, want %#x", buf[1], wantKind)
	}
	if err := rlp.DecodeBytes(buf[2:], payload); err != nil {
		return errors.Wrapf(ErrCorruptNode, "rlp decode: %v", err)
	}
	return nil
}

// EncodeNode serializes a leaf or internal node. The encoding is
// deterministic: internal children are emitted in ascending nibble order.
func EncodeNode(node Node) ([]byte, error) {
	switch n := node.(type) {
	case *LeafNode:
		return encodeRecord(recordLeaf, &storageLeaf{
			Key:       n.Key,
			ValueHash: n.ValueHash,
			Value:     n.Value,
			Version:   uint64(n.Version),
		})
	case *InternalNode:
		stored := &storageInternal{}
		for nib := 0; nib < branchWidth; nib++ {
			if ref := n.Children[nib]; ref != nil {
				stored.Children = append(stored.Children, storageChild{
					Nibble:  uint8(nib),
					Version: uint64(ref.Version),
					Hash:    ref.Hash,
				})
			}
		}
		return encodeRecord(recordInternal, stored)
	default:
		return nil, errors.Wrapf(ErrCorruptNode, "unknown node type %T", node)
	}
}

// DecodeNode is the inverse of EncodeNode. Any input not produced by
// EncodeNode fails with ErrCorruptNode; it never panics.
func DecodeNode(buf []byte) (Node, error) {
	if len(buf) < 2 {
		return nil, errors.Wrap(ErrCorruptNode, "record too short")
	}
	switch buf[1] {
	case recordLeaf:
		stored := &storageLeaf{}
		if err := decodeRecord(buf, recordLeaf, stored); err != nil {
			return nil, err
		}
		return &LeafNode{
			Key:       stored.Key,
			ValueHash: stored.ValueHash,
			Value:     stored.Value,
			Version:   Version(stored.Version),
		}, nil
	case recordInternal:
		stored := &storageInternal{}
		if err := decodeRecord(buf, recordInternal, stored); err != nil {
			return nil, err
		}
		node := &InternalNode{}
		prev := -1
		for _, child := range stored.Children {
			if int(child.Nibble) >= branchWidth || int(child.Nibble) <= prev {
				return nil, errors.Wrapf(ErrCorruptNode, "child nibble %d out of order", child.Nibble)
			}
			prev = int(child.Nibble)
			node.Children[child.Nibble] = &ChildRef{
				Version: Version(child.Version),
				Hash:    child.Hash,
			}
		}
		return node, nil
	default:
		return nil, errors.Wrapf(ErrCorruptNode, "unknown record kind %#x", buf[1])
	}
}

func encodeRootEntry(entry *RootEntry) ([]byte, error) {
	return encodeRecord(recordRoot, entry)
}

func decodeRootEntry(buf []byte) (*RootEntry, error) {
	entry := &RootEntry{}
	if err := decodeRecord(buf, recordRoot, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func encodeStaleList(addresses [][]byte) ([]byte, error) {
	return encodeRecord(recordStale, &storageStaleList{Addresses: addresses})
}

func decodeStaleList(buf []byte) ([][]byte, error) {
	stored := &storageStaleList{}
	if err := decodeRecord(buf, recordStale, stored); err != nil {
		return nil, err
	}
	return stored.Addresses, nil
}

func encodeManifest(head, earliest Version) ([]byte, error) {
	return encodeRecord(recordManifest, &storageManifest{
		Head:     uint64(head),
		Earliest: uint64(earliest),
	})
}

func decodeManifest(buf []byte) (head, earliest Version, err error) {
	stored := &storageManifest{}
	if err := decodeRecord(buf, recordManifest, stored); err != nil {
		return 0, 0, err
	}
	return Version(stored.Head), Version(stored.Earliest), nil
}
