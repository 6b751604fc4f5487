package block

import (
	"github.com/martinsk/mskql/internal/arena"
	"github.com/martinsk/mskql/internal/value"
)

// idxNone marks an empty bucket slot, mirroring IDX_NONE in the original
// engine.
const idxNone uint32 = 0xFFFFFFFF

const maxLoadFactor = 0.75

// HashTable is an arena-resident, chained hash table keyed by value.Value
// tuples, used by joins, GROUP BY, and DISTINCT. Entries are addressed by
// a dense uint32 entry index; callers attach payloads (row ids, group
// accumulators) in a parallel slice keyed by the same entry index.
type HashTable struct {
	arena    *arena.Arena
	buckets  []uint32 // nbuckets entries, idxNone = empty
	nexts    []uint32 // chain link per entry
	hashes   []uint32 // cached hash per entry
	nbuckets uint32
	capacity uint32
	count    uint32
}

// NewHashTable creates a hash table with an initial bucket count rounded
// up to the next power of two (minimum 16), allocated from a.
func NewHashTable(a *arena.Arena, hint int) *HashTable {
	nb := nextPow2(hint)
	if nb < 16 {
		nb = 16
	}
	h := &HashTable{arena: a, nbuckets: nb, capacity: nb}
	h.buckets = arena.AllocUint32(a, int(nb))
	for i := range h.buckets {
		h.buckets[i] = idxNone
	}
	h.nexts = arena.AllocUint32(a, int(nb))
	h.hashes = arena.AllocUint32(a, int(nb))
	return h
}

func nextPow2(n int) uint32 {
	if n < 1 {
		n = 1
	}
	p := uint32(1)
	for p < uint32(n) {
		p <<= 1
	}
	return p
}

// Count returns the number of entries inserted.
func (h *HashTable) Count() uint32 { return h.count }

// hashTuple hashes a key tuple the same way block_hash_cell composes:
// fold each column's FNV-1a hash together.
func hashTuple(key []value.Value) uint32 {
	const (
		fnvOffset32 uint32 = 2166136261
		fnvPrime32  uint32 = 16777619
	)
	h := fnvOffset32
	for _, v := range key {
		ch := v.Hash()
		// fold the per-column hash into the running tuple hash byte-wise,
		// matching the FNV-1a avalanche used elsewhere in the engine.
		for i := 0; i < 4; i++ {
			h ^= byte32(ch, i)
			h *= fnvPrime32
		}
	}
	return h
}

func byte32(v uint32, i int) uint32 {
	return (v >> (8 * uint(i))) & 0xFF
}

func keysEqual(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Insert adds key→entry (entry is the caller's payload-array index) and
// rehashes to the next power of two when the load factor exceeds 0.75.
// NULL keys are permitted but, per §4.2, never match another NULL during
// Lookup.
func (h *HashTable) Insert(key []value.Value, entry uint32, getKey func(uint32) []value.Value) {
	if float64(h.count+1) > maxLoadFactor*float64(h.nbuckets) {
		h.rehash(getKey)
	}
	hv := hashTuple(key)
	b := hv & (h.nbuckets - 1)
	h.ensureSlot(entry)
	h.hashes[entry] = hv
	h.nexts[entry] = h.buckets[b]
	h.buckets[b] = entry
	h.count++
}

// ensureSlot grows the nexts/hashes parallel arrays when entry indices
// are assigned by the caller rather than by this table (e.g. row ids).
func (h *HashTable) ensureSlot(entry uint32) {
	need := entry + 1
	if uint32(len(h.nexts)) >= need {
		return
	}
	newCap := nextPow2(int(need))
	nn := arena.AllocUint32(h.arena, int(newCap))
	copy(nn, h.nexts)
	for i := len(h.nexts); i < len(nn); i++ {
		nn[i] = idxNone
	}
	nh := arena.AllocUint32(h.arena, int(newCap))
	copy(nh, h.hashes)
	h.nexts = nn
	h.hashes = nh
}

func (h *HashTable) rehash(getKey func(uint32) []value.Value) {
	newN := h.nbuckets * 2
	nb := arena.AllocUint32(h.arena, int(newN))
	for i := range nb {
		nb[i] = idxNone
	}
	for b := uint32(0); b < h.nbuckets; b++ {
		e := h.buckets[b]
		for e != idxNone {
			next := h.nexts[e]
			nbIdx := h.hashes[e] & (newN - 1)
			h.nexts[e] = nb[nbIdx]
			nb[nbIdx] = e
			e = next
		}
	}
	h.buckets = nb
	h.nbuckets = newN
	h.capacity = newN
	_ = getKey
}

// Lookup invokes visit for every entry whose stored key equals key
// (per value.Value.Equal — NULLs never match), stopping early if visit
// returns false.
func (h *HashTable) Lookup(key []value.Value, getKey func(uint32) []value.Value, visit func(entry uint32) bool) {
	hv := hashTuple(key)
	b := hv & (h.nbuckets - 1)
	e := h.buckets[b]
	for e != idxNone {
		if h.hashes[e] == hv && keysEqual(getKey(e), key) {
			if !visit(e) {
				return
			}
		}
		e = h.nexts[e]
	}
}
