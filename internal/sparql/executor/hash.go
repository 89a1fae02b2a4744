package executor

import (
	"sort"
	"strings"

	"github.com/gonnect-uk/quadcore/pkg/algebra"
	"github.com/zeebo/xxh3"
)

// bindingHash computes a structural-equality hash of a Binding for
// Distinct and Group bucketing: variable names are sorted for
// order-independence, then each name/value pair is fed to xxh3 in a
// NUL-delimited encoding. Term strings are not escaped, so a literal value
// holding NUL can make two different bindings encode alike; callers
// confirm every bucket match with bindingEqual.
func bindingHash(b algebra.Binding) uint64 {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte(0)
		val := b[name].String()
		sb.WriteString(val)
		sb.WriteByte(0)
	}
	return xxh3.HashString(sb.String())
}

// bindingEqual is full structural equality, used to break ties on a
// bindingHash collision.
func bindingEqual(a, b algebra.Binding) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	return true
}
