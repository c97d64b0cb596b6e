package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"

	"github.com/zkrollup-labs/rsmt/database"
	"github.com/zkrollup-labs/rsmt/database/dbtest"
)

func TestRedisDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			mr := miniredis.RunT(t)
			return NewFromExistRedisClient(goredis.NewClient(&goredis.Options{
				Addr: mr.Addr(),
			}))
		})
	})

	t.Run("NamespacedDatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() database.TreeDB {
			mr := miniredis.RunT(t)
			db := NewFromExistRedisClient(goredis.NewClient(&goredis.Options{
				Addr: mr.Addr(),
			}))
			return WrapWithNamespace(db, "test")
		})
	})
}

func TestScanIteratorEscapesGlobMeta(t *testing.T) {
	mr := miniredis.RunT(t)
	db := NewFromExistRedisClient(goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	}))
	defer db.Close()

	// Binary node addresses can contain SCAN MATCH metacharacters.
	prefix := []byte{'n', '*', '['}
	if err := db.Set(append(prefix, 0x01), []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := db.Set([]byte("nXY"), []byte("b")); err != nil {
		t.Fatal(err)
	}

	it := db.NewIterator(prefix)
	defer it.Release()

	count := 0
	for it.Next() {
		count++
		if string(it.Value()) != "a" {
			t.Errorf("unexpected value %q", it.Value())
		}
	}
	if err := it.Error(); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("iterator yielded %d keys, want 1", count)
	}
}

func TestSnapshotNotSupported(t *testing.T) {
	mr := miniredis.RunT(t)
	db := NewFromExistRedisClient(goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	}))
	defer db.Close()

	if _, err := db.Snapshot(); err != database.ErrSnapshotNotSupported {
		t.Errorf("Snapshot: %v", err)
	}
}
