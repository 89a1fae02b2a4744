package storage

import (
	"testing"

	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

func TestMemoryBackendInsertAndMatch(t *testing.T) {
	qs := store.NewQuadStore(NewMemoryBackend(), rdf.NewDictionary())

	alice := rdf.NewNamedNode("http://example.org/alice")
	knows := rdf.NewNamedNode("http://example.org/knows")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")

	for _, q := range []*rdf.Quad{
		rdf.NewQuad(alice, knows, bob, rdf.NewDefaultGraph()),
		rdf.NewQuad(alice, knows, carol, rdf.NewDefaultGraph()),
		rdf.NewQuad(bob, knows, carol, rdf.NewDefaultGraph()),
	} {
		if _, err := qs.Insert(q); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	iter, err := qs.Match(store.Pattern{Subject: alice, Predicate: knows})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	defer iter.Close()

	got := map[string]bool{}
	for iter.Next() {
		o, ok := iter.Quad().Object.(*rdf.NamedNode)
		if !ok {
			t.Fatal("expected named node object")
		}
		got[o.IRI] = true
	}
	if !got["http://example.org/bob"] || !got["http://example.org/carol"] || len(got) != 2 {
		t.Errorf("unexpected match results: %v", got)
	}
}

func TestMemoryBackendDuplicateInsertIsNoop(t *testing.T) {
	qs := store.NewQuadStore(NewMemoryBackend(), rdf.NewDictionary())
	q := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/a"),
		rdf.NewNamedNode("http://example.org/b"),
		rdf.NewNamedNode("http://example.org/c"),
		rdf.NewDefaultGraph(),
	)

	inserted, err := qs.Insert(q)
	if err != nil || !inserted {
		t.Fatalf("first insert should succeed, got inserted=%v err=%v", inserted, err)
	}
	inserted, err = qs.Insert(q)
	if err != nil {
		t.Fatalf("second insert errored: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should report false")
	}

	count, err := qs.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 after duplicate insert, got %d", count)
	}
}

func TestMemoryBackendListGraphs(t *testing.T) {
	qs := store.NewQuadStore(NewMemoryBackend(), rdf.NewDictionary())
	g1 := rdf.NewNamedNode("http://example.org/g1")
	g2 := rdf.NewNamedNode("http://example.org/g2")

	for _, q := range []*rdf.Quad{
		rdf.NewQuad(rdf.NewNamedNode("http://example.org/s"), rdf.NewNamedNode("http://example.org/p"), rdf.NewNamedNode("http://example.org/o1"), g1),
		rdf.NewQuad(rdf.NewNamedNode("http://example.org/s"), rdf.NewNamedNode("http://example.org/p"), rdf.NewNamedNode("http://example.org/o2"), g2),
		rdf.NewQuad(rdf.NewNamedNode("http://example.org/s"), rdf.NewNamedNode("http://example.org/p"), rdf.NewNamedNode("http://example.org/o3"), rdf.NewDefaultGraph()),
	} {
		if _, err := qs.Insert(q); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	graphs, err := qs.ListGraphs()
	if err != nil {
		t.Fatalf("list graphs failed: %v", err)
	}
	if len(graphs) != 2 {
		t.Fatalf("expected 2 named graphs, got %d: %v", len(graphs), graphs)
	}
}

func TestMemoryBackendMatchUnknownTermIsEmpty(t *testing.T) {
	qs := store.NewQuadStore(NewMemoryBackend(), rdf.NewDictionary())
	iter, err := qs.Match(store.Pattern{Subject: rdf.NewNamedNode("http://example.org/nobody")})
	if err != nil {
		t.Fatalf("match on unknown term should not error: %v", err)
	}
	defer iter.Close()
	if iter.Next() {
		t.Error("expected no results for a term never inserted")
	}
}
