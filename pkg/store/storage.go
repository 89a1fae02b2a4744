// Package store implements the quad store and its four permutation
// indexes, plus the Backend contract that lets different storage engines
// plug in underneath it.
package store

import "errors"

// ErrNotFound is returned by Transaction.Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// ErrTransactionRO is returned when a write is attempted on a read-only transaction.
var ErrTransactionRO = errors.New("transaction is read-only")

// Backend is the storage contract underneath the quad store: the four
// permutation index operations plus the two dictionary tables. Backend is
// transaction-shaped so a multi-index write can be made atomic; the writes
// of a single insert land all-or-nothing.
type Backend interface {
	// Begin starts a transaction. Readers obtain a consistent snapshot;
	// there is at most one concurrent writer.
	Begin(writable bool) (Transaction, error)

	// Close releases the backend handle. For InMemory this discards the
	// dictionary; for persistent backends the dictionary is flushed.
	Close() error

	// Sync flushes writes to durable storage. A no-op for InMemory.
	Sync() error
}

// Transaction is a single read or read-write view over the backend's tables.
type Transaction interface {
	Get(table Table, key []byte) ([]byte, error)
	Set(table Table, key, value []byte) error
	Delete(table Table, key []byte) error

	// Scan returns a sorted cursor over keys in [start, end) of table. A nil
	// start begins at the first key; a nil end scans to the last key. This
	// generalizes a prefix scan to an arbitrary range, since a
	// prefix is just a range with a lexicographically-derived end.
	Scan(table Table, start, end []byte) (Iterator, error)

	Commit() error
	Rollback() error
}

// Iterator is a sorted lazy cursor over index keys.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Close() error
}

// Table names one of the six tables of the persisted layout: the four
// permutation indexes plus the two dictionary directions. InMemory backends
// have no persisted layout but still use Table to namespace their internal
// maps, for symmetry with the persistent backends.
type Table byte

const (
	TableSPOC Table = iota
	TablePOCS
	TableOCSP
	TableCSPO
	TableDictFwd // id -> string
	TableDictRev // string -> id

	// TableCount is the number of tables a Backend must provision.
	TableCount
)

func (t Table) String() string {
	switch t {
	case TableSPOC:
		return "SPOC"
	case TablePOCS:
		return "POCS"
	case TableOCSP:
		return "OCSP"
	case TableCSPO:
		return "CSPO"
	case TableDictFwd:
		return "DICT_FWD"
	case TableDictRev:
		return "DICT_REV"
	default:
		return "unknown"
	}
}

// indexTables lists the four permutation index tables in index-selection
// tie-break order: SPOC > POCS > OCSP > CSPO.
var indexTables = [4]Table{TableSPOC, TablePOCS, TableOCSP, TableCSPO}

// TablePrefix returns the single-byte namespace prefix for a table.
func TablePrefix(table Table) []byte { return []byte{byte(table)} }

// PrefixKey namespaces key under table.
func PrefixKey(table Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(table)
	copy(out[1:], key)
	return out
}
