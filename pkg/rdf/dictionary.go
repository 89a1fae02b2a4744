package rdf

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TermID is a 32-bit interned identifier. It indexes
// both plain dictionary strings and, via EncodeTermKey, whole ground Terms
// (so that the four permutation indexes in pkg/store can key a quad on four
// TermIDs rather than four variable-length term encodings).
type TermID uint32

// ErrOutOfIds is returned by Intern when the 32-bit id space is exhausted.
var ErrOutOfIds = fmt.Errorf("dictionary: out of ids")

// Dictionary is the process-wide bidirectional string<->TermID mapping:
// equal strings produce equal ids, ids are stable for the session and
// monotonically assigned, and resolution is O(1). Interning takes a short
// exclusive lock; resolution takes only a read lock.
type Dictionary struct {
	mu      sync.RWMutex
	byStr   map[string]TermID
	byID    []string // byID[id-1] == string for id
	group   singleflight.Group
	blankCt uint64
	salt    uint64 // session salt (3.: blank nodes "never equal across sessions")
}

// NewDictionary creates an empty, session-scoped Dictionary.
func NewDictionary() *Dictionary {
	salt := uint64(0)
	if id, err := uuid.NewRandom(); err == nil {
		b := id[:]
		for i := 0; i < 8; i++ {
			salt = salt<<8 | uint64(b[i])
		}
	}
	return &Dictionary{
		byStr: make(map[string]TermID),
		byID:  make([]string, 0, 1024),
		salt:  salt,
	}
}

// Intern returns the id for s, assigning a new one if s has not been seen
// before. Concurrent first-time interns of the same string are collapsed by
// singleflight so only one writer takes the exclusive lock per new string.
func (d *Dictionary) Intern(s string) (TermID, error) {
	d.mu.RLock()
	if id, ok := d.byStr[s]; ok {
		d.mu.RUnlock()
		return id, nil
	}
	d.mu.RUnlock()

	v, err, _ := d.group.Do(s, func() (interface{}, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if id, ok := d.byStr[s]; ok {
			return id, nil
		}
		if len(d.byID) >= int(^TermID(0)) {
			return TermID(0), ErrOutOfIds
		}
		id := TermID(len(d.byID) + 1) // 0 is reserved as "no id"
		d.byID = append(d.byID, s)
		d.byStr[s] = id
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(TermID), nil
}

// Lookup is the read-only counterpart of Intern: it reports the id already
// assigned to s, if any, without minting a new one. Used by read paths (e.g.
// pkg/store.Match) that must not grow the dictionary just because a caller
// asked about a term nobody ever stored.
func (d *Dictionary) Lookup(s string) (TermID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byStr[s]
	return id, ok
}

// Resolve looks up the string interned under id. ok is false if id was
// never assigned by this Dictionary.
func (d *Dictionary) Resolve(id TermID) (string, bool) {
	if id == 0 {
		return "", false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx := int(id) - 1
	if idx < 0 || idx >= len(d.byID) {
		return "", false
	}
	return d.byID[idx], true
}

// Restore installs a previously assigned id -> string mapping, used when a
// persistent backend rehydrates its dictionary at open time. Entries may
// arrive in any order; ids were minted contiguously, so once every persisted
// entry is restored the table has no holes and Intern resumes where the
// previous session stopped.
func (d *Dictionary) Restore(id TermID, s string) error {
	if id == 0 {
		return fmt.Errorf("dictionary: cannot restore reserved id 0")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := int(id) - 1
	for len(d.byID) <= idx {
		d.byID = append(d.byID, "")
	}
	d.byID[idx] = s
	d.byStr[s] = id
	return nil
}

// Len reports how many distinct strings have been interned.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

// NewBlankNodeID mints a session-scoped 64-bit blank node identifier. XORing
// a monotonic counter with a per-Dictionary random salt gives ids that
// are stable within the session and never collide with another
// Dictionary's ids without needing a full UUID per blank node.
func (d *Dictionary) NewBlankNodeID() uint64 {
	n := atomic.AddUint64(&d.blankCt, 1)
	return n ^ d.salt
}

// NewBlankNode mints a fresh session-scoped BlankNode term.
func (d *Dictionary) NewBlankNode() *BlankNode {
	return NewBlankNode(fmt.Sprintf("b%x", d.NewBlankNodeID()))
}

// EncodeTermKey produces the canonical string form of a ground Term used
// to intern the term itself as a single TermID, so the four permutation
// indexes can store one TermID per quad slot instead of a variable-length
// encoding. Quoted triples encode recursively and stay fixed-size too.
func (d *Dictionary) EncodeTermKey(t Term) (string, error) {
	switch v := t.(type) {
	case *NamedNode:
		return "I" + v.IRI, nil
	case *BlankNode:
		return "B" + v.ID, nil
	case *Literal:
		dt := ""
		if v.Datatype != nil {
			dt = v.Datatype.IRI
		}
		return fmt.Sprintf("L%s\x00%s\x00%s\x00%s", v.Value, dt, v.Language, v.Direction), nil
	case *DefaultGraph:
		return "D", nil
	case *QuotedTriple:
		sk, err := d.EncodeTermKey(v.Subject)
		if err != nil {
			return "", err
		}
		pk, err := d.EncodeTermKey(v.Predicate)
		if err != nil {
			return "", err
		}
		ok, err := d.EncodeTermKey(v.Object)
		if err != nil {
			return "", err
		}
		// Each component is length-prefixed so the encoding stays
		// unambiguous at arbitrary nesting depth: a nested quoted triple
		// is just bytes inside its parent's component.
		return "Q" + lengthPrefixed(sk) + lengthPrefixed(pk) + lengthPrefixed(ok), nil
	default:
		return "", fmt.Errorf("cannot encode term of type %T", t)
	}
}

func lengthPrefixed(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}

// readLengthPrefixed consumes one "<len>:<bytes>" component from s,
// returning the component and the unconsumed tail.
func readLengthPrefixed(s string) (part, rest string, err error) {
	sep := strings.IndexByte(s, ':')
	if sep < 1 {
		return "", "", fmt.Errorf("malformed length prefix in term key")
	}
	n, err := strconv.Atoi(s[:sep])
	if err != nil || n < 0 || sep+1+n > len(s) {
		return "", "", fmt.Errorf("malformed length prefix in term key")
	}
	return s[sep+1 : sep+1+n], s[sep+1+n:], nil
}

// LookupTerm is the read-only counterpart of InternTerm.
func (d *Dictionary) LookupTerm(t Term) (TermID, bool) {
	key, err := d.EncodeTermKey(t)
	if err != nil {
		return 0, false
	}
	return d.Lookup(key)
}

// InternTerm interns a ground Term (rejecting Variable) and returns
// its TermID. A QuotedTriple is interned as one canonical key that embeds
// the encodings of its components, so ResolveTerm can rebuild the whole
// Term from that single entry; the components get no ids of their own.
func (d *Dictionary) InternTerm(t Term) (TermID, error) {
	if err := ValidateGroundTerm(t); err != nil {
		return 0, err
	}
	key, err := d.EncodeTermKey(t)
	if err != nil {
		return 0, err
	}
	return d.Intern(key)
}

// ResolveTerm is the inverse of InternTerm: it looks up id and decodes the
// canonical key back into a Term value.
func (d *Dictionary) ResolveTerm(id TermID) (Term, bool) {
	key, ok := d.Resolve(id)
	if !ok {
		return nil, false
	}
	t, err := decodeTermKey(key)
	if err != nil {
		return nil, false
	}
	return t, true
}

func decodeTermKey(key string) (Term, error) {
	if key == "" {
		return nil, fmt.Errorf("empty term key")
	}
	switch key[0] {
	case 'I':
		return NewNamedNode(key[1:]), nil
	case 'B':
		return NewBlankNode(key[1:]), nil
	case 'D':
		return NewDefaultGraph(), nil
	case 'L':
		parts := strings.SplitN(key[1:], "\x00", 4)
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		value, dt, lang, dir := parts[0], parts[1], parts[2], parts[3]
		lit := &Literal{Value: value, Language: lang, Direction: dir}
		if dt != "" {
			lit.Datatype = NewNamedNode(dt)
		}
		return lit, nil
	case 'Q':
		var parts [3]string
		rest := key[1:]
		for i := range parts {
			var err error
			parts[i], rest, err = readLengthPrefixed(rest)
			if err != nil {
				return nil, err
			}
		}
		if rest != "" {
			return nil, fmt.Errorf("malformed quoted triple key")
		}
		s, err := decodeTermKey(parts[0])
		if err != nil {
			return nil, err
		}
		p, err := decodeTermKey(parts[1])
		if err != nil {
			return nil, err
		}
		o, err := decodeTermKey(parts[2])
		if err != nil {
			return nil, err
		}
		return NewQuotedTriple(s, p, o)
	default:
		return nil, fmt.Errorf("unknown term key tag %q", key[0])
	}
}
