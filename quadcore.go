// Package quadcore is an embedded RDF quad store with a SPARQL execution
// core: interned terms (pkg/rdf), four permutation indexes over pluggable
// backends (pkg/store, internal/storage), a query algebra and expression
// evaluator (pkg/algebra, pkg/sparql/expr), an algebra executor
// (internal/sparql/executor), and a plan optimizer with a worst-case
// optimal join (internal/sparql/optimizer), wired together behind the one
// Store type this package exports.
package quadcore

import (
	"fmt"
	"log"

	"github.com/gonnect-uk/quadcore/internal/sparql/executor"
	"github.com/gonnect-uk/quadcore/internal/sparql/optimizer"
	"github.com/gonnect-uk/quadcore/internal/storage"
	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/gonnect-uk/quadcore/pkg/qerror"
	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

// Error and ErrorKind re-export package qerror's typed error under the
// quadcore name callers are expected to use. qerror lives in its own leaf
// package, not here, because internal/sparql/executor and
// internal/sparql/optimizer both need to return it and neither may import
// this root package without creating an import cycle; a type alias costs
// nothing and keeps one public name for the error surface.
type Error = qerror.Error
type ErrorKind = qerror.Kind

const (
	ParseError          = qerror.ParseError
	UnboundVariable     = qerror.UnboundVariable
	TypeError           = qerror.TypeError
	DivideByZero        = qerror.DivideByZero
	UnknownFunction     = qerror.UnknownFunction
	ServiceNotSupported = qerror.ServiceNotSupported
	Conflict            = qerror.Conflict
	Cancelled           = qerror.Cancelled
	BackendIo           = qerror.BackendIo
	OutOfIds            = qerror.OutOfIds
)

// Config is a Store's construction-time configuration, built exclusively
// through functional Options. No environment variables are read; callers
// own all configuration.
type Config struct {
	persistentPath string // "" selects the volatile MemoryBackend
	logger         *log.Logger
}

// Option configures a Store at Open time.
type Option func(*Config)

// WithPersistentPath selects the Badger-backed persistent backend at path,
// instead of the default volatile MemoryBackend.
func WithPersistentPath(path string) Option {
	return func(c *Config) { c.persistentPath = path }
}

// WithLogger overrides the default log.Default() diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// Store is the embedded quad store and SPARQL execution facade.
type Store struct {
	backend store.Backend
	dict    *rdf.Dictionary
	qs      *store.QuadStore
	opt     *optimizer.Optimizer
	exec    *executor.Executor
	log     *log.Logger

	// predicateCounts/totalTriples back Store.Stats(), maintained
	// incrementally on InsertQuad/DeleteQuad rather than recomputed by a
	// full scan.
	predicateCounts map[rdf.TermID]int64
	totalTriples    int64
}

// Open constructs a Store per opts.
func Open(opts ...Option) (*Store, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	var backend store.Backend
	if cfg.persistentPath == "" {
		backend = storage.NewMemoryBackend()
	} else {
		b, err := storage.NewBadgerStorage(cfg.persistentPath)
		if err != nil {
			return nil, qerror.Wrap(qerror.BackendIo, err, "opening persistent backend")
		}
		backend = b
	}

	dict := rdf.NewDictionary()
	qs := store.NewQuadStore(backend, dict)
	if cfg.persistentPath != "" {
		if err := qs.LoadDictionary(); err != nil {
			backend.Close()
			return nil, qerror.Wrap(qerror.BackendIo, err, "rehydrating dictionary")
		}
	}
	opt := optimizer.NewOptimizer(nil)

	s := &Store{
		backend:         backend,
		dict:            dict,
		qs:              qs,
		opt:             opt,
		exec:            executor.NewExecutor(qs, opt),
		log:             cfg.logger,
		predicateCounts: map[rdf.TermID]int64{},
	}
	return s, nil
}

// Close releases the underlying backend.
func (s *Store) Close() error { return s.backend.Close() }

// Dictionary exposes the store's term dictionary for callers that need to
// resolve or intern terms directly (e.g. a parser feeding Load).
func (s *Store) Dictionary() *rdf.Dictionary { return s.dict }

// SetCancelFunc installs the cooperative cancellation hook for subsequent
// Query calls.
func (s *Store) SetCancelFunc(cancel func() bool) { s.exec.SetCancelFunc(cancel) }

// LastPlan returns the QueryPlan chosen for the most recently evaluated
// BGP.
func (s *Store) LastPlan() *optimizer.QueryPlan { return s.exec.LastPlan() }

// InsertQuad adds q, reporting false if it was already present. Non-ground
// terms are rejected before delegating to the QuadStore, and
// Store.Stats()' per-predicate counts are maintained.
func (s *Store) InsertQuad(q *rdf.Quad) (bool, error) {
	for _, t := range []rdf.Term{q.Subject, q.Predicate, q.Object} {
		if err := rdf.ValidateGroundTerm(t); err != nil {
			return false, qerror.Wrap(qerror.TypeError, err, "insert_quad")
		}
	}
	inserted, err := s.qs.Insert(q)
	if err != nil {
		return false, qerror.Wrap(qerror.BackendIo, err, "insert_quad")
	}
	if inserted {
		if predID, ok := s.dict.LookupTerm(q.Predicate); ok {
			s.predicateCounts[predID]++
		}
		s.totalTriples++
		s.log.Printf("insert_quad: %s", q)
	}
	return inserted, nil
}

// DeleteQuad removes q, reporting false if it was absent.
func (s *Store) DeleteQuad(q *rdf.Quad) (bool, error) {
	removed, err := s.qs.Delete(q)
	if err != nil {
		return false, qerror.Wrap(qerror.BackendIo, err, "delete_quad")
	}
	if removed {
		if predID, ok := s.dict.LookupTerm(q.Predicate); ok && s.predicateCounts[predID] > 0 {
			s.predicateCounts[predID]--
		}
		if s.totalTriples > 0 {
			s.totalTriples--
		}
		s.log.Printf("delete_quad: %s", q)
	}
	return removed, nil
}

// Contains reports whether q is in the store.
func (s *Store) Contains(q *rdf.Quad) (bool, error) {
	ok, err := s.qs.Contains(q)
	if err != nil {
		return false, qerror.Wrap(qerror.BackendIo, err, "contains")
	}
	return ok, nil
}

// Count returns the quad cardinality across all graphs.
func (s *Store) Count() (uint64, error) {
	n, err := s.qs.Count()
	if err != nil {
		return 0, qerror.Wrap(qerror.BackendIo, err, "count")
	}
	return n, nil
}

// ListGraphs returns the named graphs holding at least one quad.
func (s *Store) ListGraphs() ([]rdf.Term, error) {
	graphs, err := s.qs.ListGraphs()
	if err != nil {
		return nil, qerror.Wrap(qerror.BackendIo, err, "list_graphs")
	}
	return graphs, nil
}

// Clear removes every quad in the store (all graphs), resetting
// Store.Stats(). There is no bulk-truncate primitive in the Backend
// contract, so this walks every quad via Match and deletes it.
func (s *Store) Clear() error {
	it, err := s.qs.Match(store.Pattern{})
	if err != nil {
		return qerror.Wrap(qerror.BackendIo, err, "clear")
	}
	var quads []*rdf.Quad
	for it.Next() {
		quads = append(quads, it.Quad())
	}
	if cerr := it.Close(); cerr != nil {
		return qerror.Wrap(qerror.BackendIo, cerr, "clear")
	}
	for _, q := range quads {
		if _, err := s.qs.Delete(q); err != nil {
			return qerror.Wrap(qerror.BackendIo, err, "clear")
		}
	}
	s.predicateCounts = map[rdf.TermID]int64{}
	s.totalTriples = 0
	return nil
}

// Stats returns the Optimizer Statistics maintained incrementally on
// insert and delete.
func (s *Store) Stats() *optimizer.Statistics {
	counts := make(map[rdf.TermID]int64, len(s.predicateCounts))
	for k, v := range s.predicateCounts {
		counts[k] = v
	}
	return &optimizer.Statistics{TotalTriples: s.totalTriples, PredicateCounts: counts}
}

// Query evaluates root (an Algebra tree; the SPARQL syntax parser
// producing one is an external collaborator) against the current store,
// refreshing the Optimizer's Statistics first. Plan costing reads only the
// triple total from it; per-predicate counts are not consulted.
func (s *Store) Query(root algebra.Node) (algebra.BindingSet, error) {
	s.opt.UpdateStats(s.Stats())
	bindings, err := s.exec.Query(root)
	if err != nil {
		return nil, classifyExecError(err)
	}
	return bindings, nil
}

// QueryPlan plans patterns without executing them.
func (s *Store) QueryPlan(patterns []algebra.TriplePattern) *optimizer.QueryPlan {
	s.opt.UpdateStats(s.Stats())
	return s.opt.Explain(patterns)
}

// Load is the bulk-ingest hook point. The surface parsers that would
// produce rdf.Quad values from raw bytes are external collaborators, so
// Load reports UnknownFunction rather than silently doing nothing. Callers
// with their own parser should call InsertQuad directly per parsed triple.
func (s *Store) Load(format string, data []byte, graph rdf.Term) error {
	return qerror.New(qerror.UnknownFunction, fmt.Sprintf("load: no parser registered for format %q", format))
}

// classifyExecError passes a typed *qerror.Error through unchanged (the
// executor and optimizer already classify their own failures) and wraps
// anything else, a raw Backend error reaching all the way up, as
// BackendIo, so every error Query returns satisfies errors.As(&Error{}).
func classifyExecError(err error) error {
	if err == nil {
		return nil
	}
	if qe, ok := err.(*qerror.Error); ok {
		return qe
	}
	return qerror.Wrap(qerror.BackendIo, err, "query execution")
}
