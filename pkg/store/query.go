package store

import "github.com/gonnect-uk/quadcore/pkg/rdf"

// slot names the four positions of a quad, used to index per-table order
// arrays and pattern bound-slot arrays uniformly.
const (
	slotS = iota
	slotP
	slotO
	slotC
)

// tableOrder maps each permutation index to the slot order its key encodes,
// matching the table names themselves: SPOC encodes (s,p,o,c), POCS encodes
// (p,o,c,s), and so on.
var tableOrder = map[Table][4]int{
	TableSPOC: {slotS, slotP, slotO, slotC},
	TablePOCS: {slotP, slotO, slotC, slotS},
	TableOCSP: {slotO, slotC, slotS, slotP},
	TableCSPO: {slotC, slotS, slotP, slotO},
}

// Pattern is (s?, p?, o?, g?): each slot is either a concrete ground Term
// or a wildcard (nil).
type Pattern struct {
	Subject   rdf.Term
	Predicate rdf.Term
	Object    rdf.Term
	Graph     rdf.Term // nil means "any graph", not "default graph"
}

func (p Pattern) slots() [4]rdf.Term {
	return [4]rdf.Term{p.Subject, p.Predicate, p.Object, p.Graph}
}

// selectIndex picks the permutation whose leading bound slots form the
// longest concrete prefix, tie-breaking SPOC > POCS > OCSP > CSPO. A
// pattern with all four unbound triggers a full SPOC scan.
func selectIndex(bound [4]bool) (table Table, prefixLen int) {
	best := TableSPOC
	bestLen := -1
	for _, t := range indexTables {
		order := tableOrder[t]
		n := 0
		for _, slot := range order {
			if !bound[slot] {
				break
			}
			n++
		}
		if n > bestLen {
			bestLen = n
			best = t
		}
	}
	return best, bestLen
}
