package storage

import (
	"testing"

	"github.com/gonnect-uk/quadcore/pkg/rdf"
	"github.com/gonnect-uk/quadcore/pkg/store"
)

func TestBatchInsertAndQuery(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer backend.Close()

	qs := store.NewQuadStore(backend, rdf.NewDictionary())

	quads := []*rdf.Quad{
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/alice"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
			rdf.NewLiteral("Alice"),
			rdf.NewDefaultGraph(),
		),
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/bob"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
			rdf.NewLiteral("Bob"),
			rdf.NewDefaultGraph(),
		),
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/charlie"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
			rdf.NewLiteral("Charlie"),
			rdf.NewNamedNode("http://example.org/graph1"),
		),
	}

	for _, q := range quads {
		inserted, err := qs.Insert(q)
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if !inserted {
			t.Fatalf("expected quad to be newly inserted: %v", q)
		}
	}

	count, err := qs.Count()
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}

	iter, err := qs.Match(store.Pattern{Graph: rdf.NewDefaultGraph()})
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	defer iter.Close()

	defaultGraphCount := 0
	for iter.Next() {
		quad := iter.Quad()
		if quad == nil {
			t.Fatal("got nil quad")
		}
		defaultGraphCount++

		if quad.Graph.Type() != rdf.TermTypeDefaultGraph {
			t.Errorf("expected default graph, got type %d", quad.Graph.Type())
		}
	}

	if defaultGraphCount != 2 {
		t.Errorf("expected 2 quads in default graph, got %d", defaultGraphCount)
	}

	iter2, err := qs.Match(store.Pattern{Graph: rdf.NewNamedNode("http://example.org/graph1")})
	if err != nil {
		t.Fatalf("failed to query named graph: %v", err)
	}
	defer iter2.Close()

	namedGraphCount := 0
	for iter2.Next() {
		quad := iter2.Quad()
		if quad == nil {
			t.Fatal("got nil quad from named graph")
		}
		namedGraphCount++

		if quad.Subject.Type() != rdf.TermTypeNamedNode {
			t.Errorf("expected named node subject, got type %d", quad.Subject.Type())
		}
		subjectNode, ok := quad.Subject.(*rdf.NamedNode)
		if !ok {
			t.Error("failed to cast subject to NamedNode")
		} else if subjectNode.IRI != "http://example.org/charlie" {
			t.Errorf("expected charlie, got %s", subjectNode.IRI)
		}
	}

	if namedGraphCount != 1 {
		t.Errorf("expected 1 quad in named graph, got %d", namedGraphCount)
	}
}

func TestBatchInsertAndQuerySpecificValues(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer backend.Close()

	qs := store.NewQuadStore(backend, rdf.NewDictionary())

	aliceNode := rdf.NewNamedNode("http://example.org/alice")
	nameProperty := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	aliceLiteral := rdf.NewLiteral("Alice")

	quads := []*rdf.Quad{
		rdf.NewQuad(aliceNode, nameProperty, aliceLiteral, rdf.NewDefaultGraph()),
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/alice"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age"),
			rdf.NewLiteralWithDatatype("30", rdf.XSDInteger),
			rdf.NewDefaultGraph(),
		),
	}

	for _, q := range quads {
		if _, err := qs.Insert(q); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	iter, err := qs.Match(store.Pattern{
		Subject:   aliceNode,
		Predicate: nameProperty,
		Graph:     rdf.NewDefaultGraph(),
	})
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	defer iter.Close()

	found := false
	for iter.Next() {
		quad := iter.Quad()
		if quad.Object.Type() != rdf.TermTypeLiteral {
			t.Errorf("expected literal object, got type %d", quad.Object.Type())
		}
		literal, ok := quad.Object.(*rdf.Literal)
		if !ok {
			t.Error("failed to cast object to Literal")
		} else if literal.Value != "Alice" {
			t.Errorf("expected 'Alice', got '%s'", literal.Value)
		} else {
			found = true
		}
	}

	if !found {
		t.Error("did not find alice's name")
	}
}

func TestBatchDeleteAndQuery(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer backend.Close()

	qs := store.NewQuadStore(backend, rdf.NewDictionary())

	quads := []*rdf.Quad{
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/alice"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
			rdf.NewLiteral("Alice"),
			rdf.NewDefaultGraph(),
		),
		rdf.NewQuad(
			rdf.NewNamedNode("http://example.org/bob"),
			rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
			rdf.NewLiteral("Bob"),
			rdf.NewDefaultGraph(),
		),
	}

	for _, q := range quads {
		if _, err := qs.Insert(q); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	count, err := qs.Count()
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2 before delete, got %d", count)
	}

	removed, err := qs.Delete(quads[0])
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if !removed {
		t.Fatal("expected quad to be removed")
	}

	count, err = qs.Count()
	if err != nil {
		t.Fatalf("failed to count after delete: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 after delete, got %d", count)
	}

	iter, err := qs.Match(store.Pattern{Graph: rdf.NewDefaultGraph()})
	if err != nil {
		t.Fatalf("failed to query after delete: %v", err)
	}
	defer iter.Close()

	foundBob := false
	foundAlice := false
	for iter.Next() {
		quad := iter.Quad()
		subject, ok := quad.Subject.(*rdf.NamedNode)
		if !ok {
			t.Error("expected NamedNode subject")
			continue
		}

		if subject.IRI == "http://example.org/bob" {
			foundBob = true
		}
		if subject.IRI == "http://example.org/alice" {
			foundAlice = true
		}
	}

	if !foundBob {
		t.Error("Bob should still be present after delete")
	}
	if foundAlice {
		t.Error("Alice should be deleted")
	}
}

func TestReopenRehydratesDictionary(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	q := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/alice"),
		rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name"),
		rdf.NewLiteral("Alice"),
		rdf.NewDefaultGraph(),
	)
	qs := store.NewQuadStore(backend, rdf.NewDictionary())
	if _, err := qs.Insert(q); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	backend2, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to reopen storage: %v", err)
	}
	defer backend2.Close()

	qs2 := store.NewQuadStore(backend2, rdf.NewDictionary())
	if err := qs2.LoadDictionary(); err != nil {
		t.Fatalf("failed to load dictionary: %v", err)
	}

	ok, err := qs2.Contains(q)
	if err != nil {
		t.Fatalf("contains failed: %v", err)
	}
	if !ok {
		t.Error("expected quad to survive a close/reopen cycle")
	}

	iter, err := qs2.Match(store.Pattern{Predicate: rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")})
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	defer iter.Close()
	if !iter.Next() {
		t.Fatal("expected one quad after reopen")
	}
	lit, ok := iter.Quad().Object.(*rdf.Literal)
	if !ok || lit.Value != "Alice" {
		t.Errorf("expected literal Alice, got %v", iter.Quad().Object)
	}
}

func TestDeleteUnknownTermIsNoop(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := NewBadgerStorage(tmpDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer backend.Close()

	qs := store.NewQuadStore(backend, rdf.NewDictionary())

	ghost := rdf.NewQuad(
		rdf.NewNamedNode("http://example.org/nobody"),
		rdf.NewNamedNode("http://example.org/knows"),
		rdf.NewNamedNode("http://example.org/nobody-else"),
		rdf.NewDefaultGraph(),
	)
	removed, err := qs.Delete(ghost)
	if err != nil {
		t.Fatalf("unexpected error deleting unknown quad: %v", err)
	}
	if removed {
		t.Error("deleting a never-inserted quad should report false")
	}

	if qs.Dictionary().Len() != 0 {
		t.Error("resolving an unknown quad's terms must not grow the dictionary")
	}
}
