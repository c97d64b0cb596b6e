// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func filledHash(b byte) []byte {
	h := make([]byte, 32)
	for i := range h {
		h[i] = b
	}
	return h
}

func TestLeafNodeRoundTrip(t *testing.T) {
	leaf := &LeafNode{
		Key:       testKey(7),
		ValueHash: filledHash(0xaa),
		Value:     []byte("payload"),
		Version:   9,
	}

	buf, err := EncodeNode(leaf)
	require.NoError(t, err)
	require.Equal(t, byte(codecFormatV1), buf[0])
	require.Equal(t, byte(recordLeaf), buf[1])

	node, err := DecodeNode(buf)
	require.NoError(t, err)
	decoded, ok := node.(*LeafNode)
	require.True(t, ok)

	require.Equal(t, leaf.Key, decoded.Key)
	require.Equal(t, leaf.ValueHash, decoded.ValueHash)
	require.Equal(t, leaf.Value, decoded.Value)
	require.Equal(t, leaf.Version, decoded.Version)
}

func TestInternalNodeRoundTrip(t *testing.T) {
	internal := &InternalNode{}
	internal.Children[0] = &ChildRef{Version: 1, Hash: filledHash(0x01)}
	internal.Children[7] = &ChildRef{Version: 12, Hash: filledHash(0x07)}
	internal.Children[15] = &ChildRef{Version: 3, Hash: filledHash(0x0f)}

	buf, err := EncodeNode(internal)
	require.NoError(t, err)
	require.Equal(t, byte(recordInternal), buf[1])

	node, err := DecodeNode(buf)
	require.NoError(t, err)
	decoded, ok := node.(*InternalNode)
	require.True(t, ok)

	for nib := 0; nib < branchWidth; nib++ {
		want := internal.Children[nib]
		got := decoded.Children[nib]
		if want == nil {
			require.Nil(t, got, "nibble %d", nib)
			continue
		}
		require.NotNil(t, got, "nibble %d", nib)
		require.Equal(t, want.Version, got.Version)
		require.Equal(t, want.Hash, got.Hash)
	}

	// The encoding is deterministic.
	again, err := EncodeNode(internal)
	require.NoError(t, err)
	require.Equal(t, buf, again)
}

func TestDecodeNodeRejectsCorruptInput(t *testing.T) {
	cases := map[string][]byte{
		"nil":            nil,
		"one byte":       {codecFormatV1},
		"unknown format": {0x7f, recordLeaf, 0xc0},
		"unknown kind":   {codecFormatV1, 0x99, 0xc0},
		"empty payload":  {codecFormatV1, recordLeaf},
		"bad rlp":        {codecFormatV1, recordLeaf, 0xde, 0xad},
		"short struct":   {codecFormatV1, recordLeaf, 0xc0},
	}
	for name, buf := range cases {
		_, err := DecodeNode(buf)
		require.ErrorIs(t, err, ErrCorruptNode, name)
	}
}

func TestDecodeNodeRejectsBadChildOrder(t *testing.T) {
	cases := map[string][]storageChild{
		"descending": {
			{Nibble: 5, Version: 1, Hash: filledHash(0x05)},
			{Nibble: 3, Version: 1, Hash: filledHash(0x03)},
		},
		"duplicate": {
			{Nibble: 3, Version: 1, Hash: filledHash(0x03)},
			{Nibble: 3, Version: 2, Hash: filledHash(0x04)},
		},
		"out of range": {
			{Nibble: 16, Version: 1, Hash: filledHash(0x10)},
		},
	}
	for name, children := range cases {
		buf, err := encodeRecord(recordInternal, &storageInternal{Children: children})
		require.NoError(t, err, name)
		_, err = DecodeNode(buf)
		require.ErrorIs(t, err, ErrCorruptNode, name)
	}
}

func TestRootEntryRoundTrip(t *testing.T) {
	entry := &RootEntry{RootVersion: 5, RootHash: filledHash(0xcc), LeafCount: 42}

	buf, err := encodeRootEntry(entry)
	require.NoError(t, err)
	decoded, err := decodeRootEntry(buf)
	require.NoError(t, err)

	require.Equal(t, entry.RootVersion, decoded.RootVersion)
	require.Equal(t, entry.RootHash, decoded.RootHash)
	require.Equal(t, entry.LeafCount, decoded.LeafCount)

	ref := decoded.rootRef()
	require.NotNil(t, ref)
	require.Equal(t, Version(5), ref.Version)
	require.Equal(t, entry.RootHash, ref.Hash)

	// An empty root hash marks the empty tree.
	empty := &RootEntry{RootVersion: 0, RootHash: nil, LeafCount: 0}
	buf, err = encodeRootEntry(empty)
	require.NoError(t, err)
	decoded, err = decodeRootEntry(buf)
	require.NoError(t, err)
	require.Nil(t, decoded.rootRef())
}

func TestStaleListRoundTrip(t *testing.T) {
	addresses := [][]byte{
		nodeAddress(3, 0, nil),
		nodeAddress(3, 2, []byte{0x01, 0x0f}),
		nodeAddress(3, keyNibbles, pathOfKey(testKey(1), keyNibbles)),
	}

	buf, err := encodeStaleList(addresses)
	require.NoError(t, err)
	decoded, err := decodeStaleList(buf)
	require.NoError(t, err)
	require.Equal(t, addresses, decoded)
}

func TestManifestRoundTrip(t *testing.T) {
	buf, err := encodeManifest(17, 4)
	require.NoError(t, err)

	head, earliest, err := decodeManifest(buf)
	require.NoError(t, err)
	require.Equal(t, Version(17), head)
	require.Equal(t, Version(4), earliest)
}

func TestRecordKindMismatch(t *testing.T) {
	leafBuf, err := EncodeNode(&LeafNode{Key: testKey(1), ValueHash: filledHash(0x01), Version: 1})
	require.NoError(t, err)
	_, err = decodeRootEntry(leafBuf)
	require.ErrorIs(t, err, ErrCorruptNode)

	rootBuf, err := encodeRootEntry(&RootEntry{RootVersion: 1, RootHash: filledHash(0x02), LeafCount: 1})
	require.NoError(t, err)
	_, err = DecodeNode(rootBuf)
	require.ErrorIs(t, err, ErrCorruptNode)
	_, err = decodeStaleList(rootBuf)
	require.ErrorIs(t, err, ErrCorruptNode)
}
