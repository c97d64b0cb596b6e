package database

type (
	KeyValueReader interface {
		// Has retrieves if a key is present in the key-value data store.
		Has(key []byte) (bool, error)

		// Get retrieves the given key if it's present in the key-value data store.
		Get(key []byte) ([]byte, error)
	}
	KeyValueWriter interface {
		// Set inserts the given value into the key-value data store.
		Set(key []byte, value []byte) error

		// Delete removes the key from the key-value data store.
		Delete(key []byte) error
	}
	TreeDB interface {
		KeyValueReader
		KeyValueWriter
		// NewBatch creates a write-only database that buffers changes to its host db
		// until a final write is called. The buffered changes are applied
		// atomically.
		NewBatch() Batcher
		// NewIterator returns a finite iterator over the subset of keys
		// starting with the given prefix. Ordering follows the backend's
		// native key order.
		NewIterator(prefix []byte) Iterator
		// Snapshot returns a read-only consistent view of the store.
		// Backends without snapshot support return ErrSnapshotNotSupported.
		Snapshot() (Snapshot, error)
		Close() error
	}

	Batcher interface {
		KeyValueWriter

		// Write flushes any accumulated data to disk.
		Write() error

		// Reset resets the batch for reuse.
		Reset()

		// ValueSize retrieves the amount of data queued up for writing.
		ValueSize() int
	}

	// Iterator walks a key range lazily. Key and Value are only valid
	// until the next call to Next; callers must copy what they retain.
	Iterator interface {
		// Next moves the iterator to the next key/value pair. It returns
		// false when the iterator is exhausted.
		Next() bool

		Key() []byte
		Value() []byte

		// Error returns any accumulated error.
		Error() error

		// Release frees associated resources. Release is idempotent.
		Release()
	}

	// Snapshot is a read-only view of the store frozen at creation time.
	Snapshot interface {
		KeyValueReader

		// Release frees the snapshot. No reads may follow.
		Release()
	}
)
