package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/zkrollup-labs/rsmt/database"
	"github.com/zkrollup-labs/rsmt/utils"
)

var (
	_ database.TreeDB   = (*MemoryDB)(nil)
	_ database.Batcher  = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)
	_ database.Snapshot = (*snapshot)(nil)
)

func NewMemoryDB() database.TreeDB {
	return &MemoryDB{
		db: make(map[string][]byte),
	}
}

// MemoryDB is a key-value store.
type MemoryDB struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func (db *MemoryDB) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, database.ErrDatabaseClosed
	}
	if entry, ok := db.db[string(key)]; ok {
		return utils.CopyBytes(entry), nil
	}
	return nil, database.ErrDatabaseNotFound
}

func (db *MemoryDB) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return false, database.ErrDatabaseClosed
	}
	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *MemoryDB) Set(key []byte, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrDatabaseClosed
	}
	db.db[string(key)] = utils.CopyBytes(value)
	return nil
}

func (db *MemoryDB) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrDatabaseClosed
	}
	delete(db.db, string(key))
	return nil
}

func (db *MemoryDB) NewBatch() database.Batcher {
	return &batch{
		db: db,
	}
}

// NewIterator returns an iterator over a sorted copy of the matching keys,
// frozen at creation time.
func (db *MemoryDB) NewIterator(prefix []byte) database.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	it := &iterator{index: -1}
	if db.db == nil {
		it.err = database.ErrDatabaseClosed
		return it
	}
	for key := range db.db {
		if strings.HasPrefix(key, string(prefix)) {
			it.keys = append(it.keys, key)
		}
	}
	sort.Strings(it.keys)
	it.values = make([][]byte, len(it.keys))
	for i, key := range it.keys {
		it.values[i] = utils.CopyBytes(db.db[key])
	}
	return it
}

// Snapshot copies the whole store. Fine for tests, which is what this
// backend is for.
func (db *MemoryDB) Snapshot() (database.Snapshot, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, database.ErrDatabaseClosed
	}
	frozen := make(map[string][]byte, len(db.db))
	for key, value := range db.db {
		frozen[key] = utils.CopyBytes(value)
	}
	return &snapshot{db: frozen}, nil
}

func (db *MemoryDB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.db = nil
	return nil
}

// keyvalue is a key-value tuple tagged with a deletion field to allow creating
// memory-database write batches.
type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

// batch is a write-only memory batch that commits changes to its host
// database when Write is called. A batch cannot be used concurrently.
type batch struct {
	db     *MemoryDB
	writes []keyvalue
	size   int
}

// Set inserts the given value into the batch for later committing.
func (b *batch) Set(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{utils.CopyBytes(key), utils.CopyBytes(value), false})
	b.size += len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{utils.CopyBytes(key), nil, true})
	b.size += len(key)
	return nil
}

// Write flushes any accumulated data to the memory database.
func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return database.ErrDatabaseClosed
	}
	for _, keyvalue := range b.writes {
		if keyvalue.delete {
			delete(b.db.db, string(keyvalue.key))
			continue
		}
		b.db.db[string(keyvalue.key)] = keyvalue.value
	}
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

type iterator struct {
	keys   []string
	values [][]byte
	index  int
	err    error
}

func (it *iterator) Next() bool {
	if it.err != nil || it.index >= len(it.keys)-1 {
		return false
	}
	it.index++
	return true
}

func (it *iterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.index])
}

func (it *iterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Release() {
	it.keys = nil
	it.values = nil
	it.index = -1
}

type snapshot struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.db == nil {
		return nil, database.ErrSnapshotReleased
	}
	if entry, ok := s.db[string(key)]; ok {
		return utils.CopyBytes(entry), nil
	}
	return nil, database.ErrDatabaseNotFound
}

func (s *snapshot) Has(key []byte) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.db == nil {
		return false, database.ErrSnapshotReleased
	}
	_, ok := s.db[string(key)]
	return ok, nil
}

func (s *snapshot) Release() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.db = nil
}
