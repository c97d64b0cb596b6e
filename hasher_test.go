// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherConcatenatesInputs(t *testing.T) {
	hasher := NewHasherPool(func() hash.Hash { return sha256.New() })

	want := sha256.Sum256([]byte("hello world"))
	require.Equal(t, want[:], hasher.Hash([]byte("hello "), []byte("world")))
	require.Equal(t, want[:], hasher.Hash([]byte("hello world")))
	require.Equal(t, 32, hasher.Size())
}

func TestSingleHasherMatchesPool(t *testing.T) {
	pool := NewHasherPool(func() hash.Hash { return sha256.New() })
	single := NewHasher(sha256.New())

	inputs := [][]byte{[]byte("a"), []byte("bc"), nil, []byte("d")}
	require.Equal(t, pool.Hash(inputs...), single.Hash(inputs...))
	require.Equal(t, pool.Size(), single.Size())
}

func TestHasherPoolConcurrency(t *testing.T) {
	hasher := NewHasherPool(func() hash.Hash { return sha256.New() })
	want := hasher.Hash([]byte("stable input"))

	var wg sync.WaitGroup
	mismatches := make(chan []byte, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if got := hasher.Hash([]byte("stable input")); !bytes.Equal(got, want) {
					mismatches <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(mismatches)
	for got := range mismatches {
		t.Errorf("concurrent hash diverged: %x != %x", got, want)
	}
}

func TestDomainSeparation(t *testing.T) {
	hasher := NewHasherPool(func() hash.Hash { return sha256.New() })

	left, right := filledHash(0x01), filledHash(0x02)
	require.NotEqual(t, hasher.hashInternal(left, right), hasher.hashInternal(right, left))

	// A leaf preimage must never collide with an internal preimage.
	key := testKey(1)
	valueHash := filledHash(0x03)
	require.NotEqual(t, hasher.hashLeaf(key, valueHash), hasher.hashInternal(key, valueHash))
}

func TestNilHashesChain(t *testing.T) {
	hasher := NewHasherPool(func() hash.Hash { return sha256.New() })
	nilh := newNilHashes(hasher)

	require.Equal(t, make([]byte, 32), nilh.Get(maxBinaryDepth))

	for depth := 0; depth < maxBinaryDepth; depth++ {
		child := nilh.Get(depth + 1)
		require.Equal(t, hasher.hashInternal(child, child), nilh.Get(depth), "depth %d", depth)
	}

	// Adjacent levels never collide.
	require.NotEqual(t, nilh.Get(0), nilh.Get(1))
}
