// Package storage provides the Backend implementations behind pkg/store: a
// volatile MemoryBackend and a persistent BadgerBackend. Both speak the
// transaction-shaped contract of pkg/store (Begin/Get/Set/Delete/Scan), so
// the QuadStore above them never knows which engine it is running on.
package storage

import (
	"bytes"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/gonnect-uk/quadcore/pkg/store"
)

// BadgerBackend is the persistent store.Backend over an LSM tree. Each of
// the six tables of the persisted layout (SPOC/POCS/OCSP/CSPO plus the two
// dictionary directions) lives under a single-byte key prefix in one Badger
// keyspace; Badger's MVCC transactions give readers a consistent snapshot
// view while one writer commits.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerStorage opens (or creates) the Badger database at path.
func NewBadgerStorage(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db at %s: %w", path, err)
	}
	return &BadgerBackend{db: db}, nil
}

// Begin starts a Badger transaction: a read snapshot when writable is
// false, or the store's single writer otherwise.
func (b *BadgerBackend) Begin(writable bool) (store.Transaction, error) {
	return &badgerTxn{txn: b.db.NewTransaction(writable), writable: writable}, nil
}

func (b *BadgerBackend) Close() error { return b.db.Close() }

// Sync forces the value log to durable storage.
func (b *BadgerBackend) Sync() error { return b.db.Sync() }

type badgerTxn struct {
	txn      *badger.Txn
	writable bool
}

func (t *badgerTxn) Get(table store.Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(store.PrefixKey(table, key))
	if err == badger.ErrKeyNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Set(table store.Table, key, value []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Set(store.PrefixKey(table, key), value)
}

func (t *badgerTxn) Delete(table store.Table, key []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	return t.txn.Delete(store.PrefixKey(table, key))
}

// Scan returns a sorted cursor over [start, end) within table. The table's
// one-byte prefix keeps the Badger iterator from straying into a sibling
// table; the end bound is enforced here since Badger iterators only take a
// prefix, not a range.
func (t *badgerTxn) Scan(table store.Table, start, end []byte) (store.Iterator, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = store.TablePrefix(table)

	seek := store.TablePrefix(table)
	if start != nil {
		seek = store.PrefixKey(table, start)
	}

	var stop []byte
	if end != nil {
		stop = store.PrefixKey(table, end)
	}

	return &badgerIterator{
		it:   t.txn.NewIterator(opts),
		trim: len(store.TablePrefix(table)),
		seek: seek,
		stop: stop,
	}, nil
}

func (t *badgerTxn) Commit() error { return t.txn.Commit() }

func (t *badgerTxn) Rollback() error {
	t.txn.Discard()
	return nil
}

// badgerIterator adapts badger.Iterator to store.Iterator: it seeks lazily
// on the first Next, strips the table prefix from keys, and halts at the
// exclusive stop key.
type badgerIterator struct {
	it    *badger.Iterator
	trim  int
	seek  []byte
	stop  []byte
	valid bool
}

func (i *badgerIterator) Next() bool {
	if i.seek != nil {
		i.it.Seek(i.seek)
		i.seek = nil
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		i.valid = false
		return false
	}
	if i.stop != nil && bytes.Compare(i.it.Item().Key(), i.stop) >= 0 {
		i.valid = false
		return false
	}
	i.valid = true
	return true
}

func (i *badgerIterator) Key() []byte {
	if !i.valid {
		return nil
	}
	key := i.it.Item().Key()
	if len(key) <= i.trim {
		return nil
	}
	return key[i.trim:]
}

func (i *badgerIterator) Value() ([]byte, error) {
	if !i.valid {
		return nil, store.ErrNotFound
	}
	return i.it.Item().ValueCopy(nil)
}

func (i *badgerIterator) Close() error {
	i.it.Close()
	return nil
}
