package store

import (
	"encoding/binary"

	"github.com/gonnect-uk/quadcore/pkg/rdf"
)

// QuadKeySize is the fixed key size of a permutation index entry: four
// big-endian u32 term ids concatenated.
const QuadKeySize = 4 * 4

// EncodeQuadKey concatenates four TermIDs as big-endian u32 values so
// that lexicographic byte order of keys equals tuple order, which is what
// lets a permutation index support range scans on any prefix.
func EncodeQuadKey(a, b, c, d rdf.TermID) []byte {
	key := make([]byte, QuadKeySize)
	binary.BigEndian.PutUint32(key[0:4], uint32(a))
	binary.BigEndian.PutUint32(key[4:8], uint32(b))
	binary.BigEndian.PutUint32(key[8:12], uint32(c))
	binary.BigEndian.PutUint32(key[12:16], uint32(d))
	return key
}

// DecodeQuadKey is the inverse of EncodeQuadKey.
func DecodeQuadKey(key []byte) (a, b, c, d rdf.TermID) {
	a = rdf.TermID(binary.BigEndian.Uint32(key[0:4]))
	b = rdf.TermID(binary.BigEndian.Uint32(key[4:8]))
	c = rdf.TermID(binary.BigEndian.Uint32(key[8:12]))
	d = rdf.TermID(binary.BigEndian.Uint32(key[12:16]))
	return
}

// EncodeQuadKeyPrefix encodes only the leading n bound components of a
// key, for use as a range-scan prefix. n must be 0..4.
func EncodeQuadKeyPrefix(ids []rdf.TermID, n int) []byte {
	key := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint32(key[i*4:i*4+4], uint32(ids[i]))
	}
	return key
}

// EncodeDictID encodes a TermID as the little-endian u32 key of a DICT_FWD
// entry. DICT_FWD is a point-lookup table, never range-scanned by id, so
// the key order does not need to match numeric order.
func EncodeDictID(id rdf.TermID) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, uint32(id))
	return key
}

// DecodeDictID is the inverse of EncodeDictID.
func DecodeDictID(key []byte) rdf.TermID {
	return rdf.TermID(binary.LittleEndian.Uint32(key))
}

// PrefixUpperBound returns the exclusive upper bound of the byte range whose
// keys all start with prefix, i.e. prefix incremented as a big-endian
// integer. A nil result means "no upper bound" (prefix was all 0xFF or empty).
func PrefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
