// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"encoding/binary"
)

// Storage layout. Every record lives in one of four logical namespaces,
// selected by a one byte key prefix:
//
//	'n' <version:8> <depth:1> <packed nibble path> -> encoded node
//	'r' <version:8>                                -> encoded root entry
//	's' <version:8>                                -> encoded stale address list
//	'm'                                            -> encoded manifest
//
// Node addresses combine the path with the version that wrote the node, so
// the same path can exist at many versions and all nodes written by one
// commit share the 'n'<version> prefix. This addressing is part of the
// on-disk compatibility contract.
const (
	nodeKeyTag     = 'n'
	rootKeyTag     = 'r'
	staleKeyTag    = 's'
	manifestKeyTag = 'm'

	versionBytes = 8
)

func nodeAddress(version Version, depth uint8, path []byte) []byte {
	addr := make([]byte, 0, 1+versionBytes+1+(len(path)+1)/2)
	addr = append(addr, nodeKeyTag)
	addr = appendVersion(addr, version)
	addr = append(addr, depth)
	addr = append(addr, packNibbles(path)...)
	return addr
}

// nodeVersionPrefix covers every node written by the given version.
func nodeVersionPrefix(version Version) []byte {
	prefix := make([]byte, 0, 1+versionBytes)
	prefix = append(prefix, nodeKeyTag)
	return appendVersion(prefix, version)
}

func rootIndexKey(version Version) []byte {
	key := make([]byte, 0, 1+versionBytes)
	key = append(key, rootKeyTag)
	return appendVersion(key, version)
}

func staleIndexKey(version Version) []byte {
	key := make([]byte, 0, 1+versionBytes)
	key = append(key, staleKeyTag)
	return appendVersion(key, version)
}

func manifestKey() []byte {
	return []byte{manifestKeyTag}
}

func appendVersion(buf []byte, version Version) []byte {
	var raw [versionBytes]byte
	binary.BigEndian.PutUint64(raw[:], uint64(version))
	return append(buf, raw[:]...)
}

// packNibbles stores two 4-bit branch indices per byte. An odd trailing
// nibble occupies the high half of the final byte; the depth byte in the
// address disambiguates the padding.
func packNibbles(path []byte) []byte {
	packed := make([]byte, (len(path)+1)/2)
	for i, nib := range path {
		if i%2 == 0 {
			packed[i/2] = nib << 4
		} else {
			packed[i/2] |= nib & 0x0f
		}
	}
	return packed
}
