// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRevertRestoresHistoricalState(t *testing.T) {
	tree, db := newTestTree(t)
	k1, k2 := testKey(1), testKey(2)

	roots := make([][]byte, 0, 4)
	for version, changes := range [][]Change{
		{{Key: k1, Value: []byte("v0")}},
		{{Key: k1, Value: []byte("v1")}, {Key: k2, Value: []byte("w")}},
		{{Key: k1, Value: []byte("v2")}},
		{{Key: k2, Delete: true}},
	} {
		root, err := tree.Commit(Version(version), changes)
		require.NoError(t, err)
		roots = append(roots, root)
	}

	require.NoError(t, tree.RevertTo(1))

	head, ok := tree.LatestVersion()
	require.True(t, ok)
	require.Equal(t, Version(1), head)

	root, err := tree.RootHash(1)
	require.NoError(t, err)
	require.Equal(t, roots[1], root)

	got, err := tree.Get(k1, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
	got, err = tree.Get(k2, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("w"), got)

	_, err = tree.Get(k1, 2)
	require.ErrorIs(t, err, ErrVersionNotFound)
	_, err = tree.RootHash(3)
	require.ErrorIs(t, err, ErrVersionNotFound)

	// The reverted versions are physically gone.
	require.Zero(t, countVersionNodes(t, db, 2))
	require.Zero(t, countVersionNodes(t, db, 3))
	for _, version := range []Version{2, 3} {
		has, err := db.Has(rootIndexKey(version))
		require.NoError(t, err)
		require.False(t, has)
		has, err = db.Has(staleIndexKey(version))
		require.NoError(t, err)
		require.False(t, has)
	}

	// Version 2 can be built again on top of the reinstated head.
	r2, err := tree.Commit(2, []Change{{Key: k1, Value: []byte("other")}})
	require.NoError(t, err)
	require.NotEqual(t, roots[2], r2)
}

func TestRevertTargetValidation(t *testing.T) {
	tree, _ := newTestTree(t)

	require.ErrorIs(t, tree.RevertTo(0), ErrTargetVersionNotFound)

	key := testKey(1)
	for version := Version(0); version <= 2; version++ {
		_, err := tree.Commit(version, []Change{{Key: key, Value: []byte{byte(version)}}})
		require.NoError(t, err)
	}

	require.ErrorIs(t, tree.RevertTo(2), ErrTargetAheadOfHead)
	require.ErrorIs(t, tree.RevertTo(7), ErrTargetAheadOfHead)
}

func TestRevertToEmptyGenesis(t *testing.T) {
	tree, _ := newTestTree(t)
	key := testKey(1)

	r0, err := tree.Commit(0, nil)
	require.NoError(t, err)
	_, err = tree.Commit(1, []Change{{Key: key, Value: []byte("a")}})
	require.NoError(t, err)

	require.NoError(t, tree.RevertTo(0))

	root, err := tree.RootHash(0)
	require.NoError(t, err)
	require.Equal(t, r0, root)

	_, err = tree.Get(key, 0)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRevertResumesAfterPartialRun(t *testing.T) {
	tree, db := newTestTree(t)
	key := testKey(1)

	for version := Version(0); version <= 3; version++ {
		_, err := tree.Commit(version, []Change{{Key: key, Value: []byte{byte(version)}}})
		require.NoError(t, err)
	}

	// Drop the top version only, as if the process died between the
	// per-version batches of a revert to 1.
	require.NoError(t, tree.dropVersion(3))

	reopened, err := NewMerkleStateTree(db)
	require.NoError(t, err)

	head, ok := reopened.LatestVersion()
	require.True(t, ok)
	require.Equal(t, Version(2), head)

	require.NoError(t, reopened.RevertTo(1))

	got, err := reopened.Get(key, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)

	require.Zero(t, countVersionNodes(t, db, 2))
	require.Zero(t, countVersionNodes(t, db, 3))
}
