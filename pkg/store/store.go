package store

import (
	"fmt"

	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// QuadStore layers the four permutation indexes (SPOC/POCS/OCSP/CSPO)
// over a Backend and an rdf.Dictionary. Every graph, default or named, is
// just another bound/unbound C slot, so no separate default-graph tables
// are needed.
type QuadStore struct {
	backend Backend
	dict    *rdf.Dictionary
}

// NewQuadStore wires a Backend and Dictionary into a QuadStore. The
// Dictionary's lifetime matches the store's.
func NewQuadStore(backend Backend, dict *rdf.Dictionary) *QuadStore {
	return &QuadStore{backend: backend, dict: dict}
}

func (s *QuadStore) Dictionary() *rdf.Dictionary { return s.dict }

func (s *QuadStore) Close() error { return s.backend.Close() }

// graphOrDefault normalizes a nil/DefaultGraph graph term.
func graphOrDefault(g rdf.Term) rdf.Term {
	if g == nil {
		return rdf.NewDefaultGraph()
	}
	return g
}

// Insert adds quad to all four indexes, reporting false if it was already
// present: a graph holds no duplicate quads.
func (s *QuadStore) Insert(quad *rdf.Quad) (bool, error) {
	ids, err := s.internQuad(quad)
	if err != nil {
		return false, err
	}

	txn, err := s.backend.Begin(true)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()

	key := EncodeQuadKey(ids[slotS], ids[slotP], ids[slotO], ids[slotC])
	if _, err := txn.Get(TableSPOC, key); err == nil {
		return false, nil // already present; no-op
	} else if err != ErrNotFound {
		return false, err
	}

	for _, t := range indexTables {
		order := tableOrder[t]
		k := EncodeQuadKey(ids[order[0]], ids[order[1]], ids[order[2]], ids[order[3]])
		if err := txn.Set(t, k, []byte{}); err != nil {
			return false, err
		}
	}

	if err := s.persistDictEntries(txn, quad, ids); err != nil {
		return false, err
	}

	if err := txn.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// persistDictEntries writes the DICT_FWD/DICT_REV rows for the quad's four
// term ids in the same transaction as the index rows, so a persistent
// backend can rehydrate the dictionary at open time. The writes are
// idempotent; entries for already-known terms simply overwrite themselves.
func (s *QuadStore) persistDictEntries(txn Transaction, quad *rdf.Quad, ids [4]rdf.TermID) error {
	terms := [4]rdf.Term{quad.Subject, quad.Predicate, quad.Object, graphOrDefault(quad.Graph)}
	for i, t := range terms {
		key, err := s.dict.EncodeTermKey(t)
		if err != nil {
			return err
		}
		if err := txn.Set(TableDictFwd, EncodeDictID(ids[i]), []byte(key)); err != nil {
			return err
		}
		if err := txn.Set(TableDictRev, []byte(key), EncodeDictID(ids[i])); err != nil {
			return err
		}
	}
	return nil
}

// LoadDictionary rehydrates the dictionary from the backend's DICT_FWD
// table, for reopening a persistent store whose in-memory dictionary starts
// empty. A volatile backend has nothing persisted and this is a no-op.
func (s *QuadStore) LoadDictionary() error {
	txn, err := s.backend.Begin(false)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableDictFwd, nil, nil)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		val, err := it.Value()
		if err != nil {
			return err
		}
		if err := s.dict.Restore(DecodeDictID(it.Key()), string(val)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes quad from all four indexes, reporting false if it was
// absent.
func (s *QuadStore) Delete(quad *rdf.Quad) (bool, error) {
	ids, err := s.resolveQuad(quad)
	if err != nil {
		return false, err
	}
	if ids == nil {
		return false, nil // some term was never interned: nothing to delete
	}

	txn, err := s.backend.Begin(true)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()

	key := EncodeQuadKey(ids[slotS], ids[slotP], ids[slotO], ids[slotC])
	if _, err := txn.Get(TableSPOC, key); err == ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}

	for _, t := range indexTables {
		order := tableOrder[t]
		k := EncodeQuadKey(ids[order[0]], ids[order[1]], ids[order[2]], ids[order[3]])
		if err := txn.Delete(t, k); err != nil {
			return false, err
		}
	}

	if err := txn.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether quad is present.
func (s *QuadStore) Contains(quad *rdf.Quad) (bool, error) {
	ids, err := s.resolveQuad(quad)
	if err != nil {
		return false, err
	}
	if ids == nil {
		return false, nil
	}

	txn, err := s.backend.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()

	key := EncodeQuadKey(ids[slotS], ids[slotP], ids[slotO], ids[slotC])
	_, err = txn.Get(TableSPOC, key)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Count returns the quad cardinality across all graphs.
func (s *QuadStore) Count() (uint64, error) {
	txn, err := s.backend.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableSPOC, nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n uint64
	for it.Next() {
		n++
	}
	return n, nil
}

// ListGraphs returns the named graphs holding at least one quad. It
// derives the set from CSPO's leading column, which groups all quads by
// graph, so a single forward scan yields every distinct graph without a
// secondary index.
func (s *QuadStore) ListGraphs() ([]rdf.Term, error) {
	txn, err := s.backend.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	it, err := txn.Scan(TableCSPO, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	seen := map[rdf.TermID]bool{}
	var graphs []rdf.Term
	for it.Next() {
		cID, _, _, _ := DecodeQuadKey(it.Key())
		g, ok := s.dict.ResolveTerm(cID)
		if !ok {
			continue
		}
		if _, isDefault := g.(*rdf.DefaultGraph); isDefault {
			continue
		}
		if !seen[cID] {
			seen[cID] = true
			graphs = append(graphs, g)
		}
	}
	return graphs, nil
}

// Match returns a lazy sequence of the quads satisfying pattern. A
// pattern term unknown to the dictionary yields an empty sequence, not an
// error.
func (s *QuadStore) Match(pattern Pattern) (QuadIterator, error) {
	slots := pattern.slots()
	var bound [4]bool
	var ids [4]rdf.TermID
	for i, t := range slots {
		if t == nil {
			continue
		}
		id, ok := s.internIfKnown(t)
		if !ok {
			return emptyIterator{}, nil // unknown term: empty result, not an error
		}
		bound[i] = true
		ids[i] = id
	}

	table, prefixLen := selectIndex(bound)
	order := tableOrder[table]
	prefixIDs := make([]rdf.TermID, prefixLen)
	for i := 0; i < prefixLen; i++ {
		prefixIDs[i] = ids[order[i]]
	}
	prefix := EncodeQuadKeyPrefix(prefixIDs, prefixLen)
	end := PrefixUpperBound(prefix)

	txn, err := s.backend.Begin(false)
	if err != nil {
		return nil, err
	}

	it, err := txn.Scan(table, prefix, end)
	if err != nil {
		txn.Rollback()
		return nil, err
	}

	return &storeQuadIterator{
		store: s,
		txn:   txn,
		it:    it,
		order: order,
		bound: bound,
		ids:   ids,
	}, nil
}

// internIfKnown looks up the TermID already assigned to a ground term,
// without minting a new one: a read (Match/Contains/Delete) must never
// silently grow the dictionary over terms that were never inserted.
func (s *QuadStore) internIfKnown(t rdf.Term) (rdf.TermID, bool) {
	return s.dict.LookupTerm(t)
}

func (s *QuadStore) internQuad(quad *rdf.Quad) ([4]rdf.TermID, error) {
	var ids [4]rdf.TermID
	var err error
	if ids[slotS], err = s.dict.InternTerm(quad.Subject); err != nil {
		return ids, fmt.Errorf("subject: %w", err)
	}
	if ids[slotP], err = s.dict.InternTerm(quad.Predicate); err != nil {
		return ids, fmt.Errorf("predicate: %w", err)
	}
	if ids[slotO], err = s.dict.InternTerm(quad.Object); err != nil {
		return ids, fmt.Errorf("object: %w", err)
	}
	if ids[slotC], err = s.dict.InternTerm(graphOrDefault(quad.Graph)); err != nil {
		return ids, fmt.Errorf("graph: %w", err)
	}
	return ids, nil
}

// resolveQuad interns-if-known all four terms of quad, returning nil (no
// error) if any term is unknown to the dictionary.
func (s *QuadStore) resolveQuad(quad *rdf.Quad) (*[4]rdf.TermID, error) {
	var ids [4]rdf.TermID
	terms := [4]rdf.Term{quad.Subject, quad.Predicate, quad.Object, graphOrDefault(quad.Graph)}
	for i, t := range terms {
		id, ok := s.internIfKnown(t)
		if !ok {
			return nil, nil
		}
		ids[i] = id
	}
	return &ids, nil
}

// QuadIterator is the lazy sequence returned by Match.
type QuadIterator interface {
	Next() bool
	Quad() *rdf.Quad
	Close() error
}

type emptyIterator struct{}

func (emptyIterator) Next() bool    { return false }
func (emptyIterator) Quad() *rdf.Quad { return nil }
func (emptyIterator) Close() error  { return nil }

type storeQuadIterator struct {
	store   *QuadStore
	txn     Transaction
	it      Iterator
	order   [4]int
	bound   [4]bool
	ids     [4]rdf.TermID
	current *rdf.Quad
}

func (si *storeQuadIterator) Next() bool {
	for si.it.Next() {
		a, b, c, d := DecodeQuadKey(si.it.Key())
		decoded := [4]rdf.TermID{}
		decoded[si.order[0]] = a
		decoded[si.order[1]] = b
		decoded[si.order[2]] = c
		decoded[si.order[3]] = d

		// Post-filter any bound slot that fell outside the scanned prefix.
		match := true
		for slot := 0; slot < 4; slot++ {
			if si.bound[slot] && decoded[slot] != si.ids[slot] {
				match = false
				break
			}
		}
		if !match {
			continue
		}

		quad, ok := si.decodeQuad(decoded)
		if !ok {
			continue
		}
		si.current = quad
		return true
	}
	return false
}

func (si *storeQuadIterator) decodeQuad(ids [4]rdf.TermID) (*rdf.Quad, bool) {
	s, ok := si.store.dict.ResolveTerm(ids[slotS])
	if !ok {
		return nil, false
	}
	p, ok := si.store.dict.ResolveTerm(ids[slotP])
	if !ok {
		return nil, false
	}
	o, ok := si.store.dict.ResolveTerm(ids[slotO])
	if !ok {
		return nil, false
	}
	g, ok := si.store.dict.ResolveTerm(ids[slotC])
	if !ok {
		return nil, false
	}
	return rdf.NewQuad(s, p, o, g), true
}

func (si *storeQuadIterator) Quad() *rdf.Quad { return si.current }

func (si *storeQuadIterator) Close() error {
	si.it.Close()
	return si.txn.Rollback()
}
