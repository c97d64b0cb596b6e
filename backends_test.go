// Copyright 2023 zkrollup-labs. All Rights Reserved.
//
// Distributed under MIT license.
// See file LICENSE for detail or copy at https://opensource.org/licenses/MIT

package rsmt

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/zkrollup-labs/rsmt/database"
	"github.com/zkrollup-labs/rsmt/database/leveldb"
	"github.com/zkrollup-labs/rsmt/database/memory"
	"github.com/zkrollup-labs/rsmt/database/redis"
)

// runLifecycle drives one tree through commits, a revert and a prune, and
// returns the root hashes of the surviving versions. The outcome must not
// depend on the backing store.
func runLifecycle(t *testing.T, db database.TreeDB) [][]byte {
	t.Helper()

	tree, err := NewMerkleStateTree(db, WithCacheSize(1<<10))
	require.NoError(t, err)

	k1, k2, k3 := testKey(1), testKey(2), testKey(3)

	_, err = tree.Commit(0, []Change{
		{Key: k1, Value: []byte("a")},
		{Key: k2, Value: []byte("b")},
	})
	require.NoError(t, err)
	_, err = tree.Commit(1, []Change{{Key: k1, Value: []byte("a2")}})
	require.NoError(t, err)
	_, err = tree.Commit(2, []Change{
		{Key: k2, Delete: true},
		{Key: k3, Value: []byte("c")},
	})
	require.NoError(t, err)

	require.NoError(t, tree.RevertTo(1))
	_, err = tree.Commit(2, []Change{{Key: k3, Value: []byte("d")}})
	require.NoError(t, err)
	require.NoError(t, tree.Prune(1))

	got, err := tree.Get(k2, 2)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)
	got, err = tree.Get(k3, 2)
	require.NoError(t, err)
	require.Equal(t, []byte("d"), got)

	roots := make([][]byte, 0, 2)
	for version := Version(1); version <= 2; version++ {
		root, err := tree.RootHash(version)
		require.NoError(t, err)
		roots = append(roots, root)
	}

	report, err := Check(db, CheckOptions{From: 1, To: 2})
	require.NoError(t, err)
	require.True(t, report.Ok())

	return roots
}

func TestBackendsAgreeOnRoots(t *testing.T) {
	reference := runLifecycle(t, memory.NewMemoryDB())

	t.Run("leveldb", func(t *testing.T) {
		inner, err := goleveldb.Open(storage.NewMemStorage(), nil)
		require.NoError(t, err)
		db := leveldb.NewFromExistLevelDB(inner)
		defer db.Close()

		require.Equal(t, reference, runLifecycle(t, db))
	})

	t.Run("leveldb namespaced", func(t *testing.T) {
		inner, err := goleveldb.Open(storage.NewMemStorage(), nil)
		require.NoError(t, err)
		db := leveldb.WrapWithNamespace(leveldb.NewFromExistLevelDB(inner), "state")
		defer db.Close()

		require.Equal(t, reference, runLifecycle(t, db))
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		db := redis.NewFromExistRedisClient(client)
		defer db.Close()

		require.Equal(t, reference, runLifecycle(t, db))
	})
}
