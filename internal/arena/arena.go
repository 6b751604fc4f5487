// Package arena implements the engine's bump allocator: O(1) allocation
// from growable chunks, with checkpoint/reset_to for scoped reclamation
// and a side list for oversize requests. Every row block, hash table,
// selection vector, and scratch string buffer produced while handling one
// wire message is drawn from a single arena and released together.
package arena

import "unsafe"

// DefaultChunkSize is the size of each backing chunk when none is
// supplied to New.
const DefaultChunkSize = 64 * 1024

type chunk struct {
	buf  []byte
	used int
}

// oversizeBlock records an allocation too large to fit a fresh chunk; it
// is tracked separately so it doesn't force every subsequent chunk to be
// oversized too.
type oversizeBlock struct {
	buf []byte
}

// Arena is a bump allocator. It is not safe for concurrent use; the
// engine gives each session its own arena.
type Arena struct {
	chunkSize int
	chunks    []*chunk
	oversize  []oversizeBlock
	cur       int // index of the chunk currently being bumped
}

// New creates an arena whose chunks default to at least chunkSize bytes.
// A chunkSize <= 0 uses DefaultChunkSize.
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	a := &Arena{chunkSize: chunkSize}
	a.chunks = append(a.chunks, &chunk{buf: make([]byte, chunkSize)})
	return a
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// Alloc returns n bytes aligned to align (must be a power of two), bumped
// from the current chunk or a freshly allocated one. The returned slice's
// contents are zeroed.
func (a *Arena) Alloc(n, align int) []byte {
	if n <= 0 {
		return nil
	}
	if n > a.chunkSize {
		ob := oversizeBlock{buf: make([]byte, n)}
		a.oversize = append(a.oversize, ob)
		return ob.buf
	}

	c := a.chunks[a.cur]
	start := alignUp(c.used, align)
	if start+n > len(c.buf) {
		// Current chunk exhausted: try any chunk already allocated beyond
		// cur (from a prior reset_to that didn't truncate the chain),
		// else grow the chain.
		for i := a.cur + 1; i < len(a.chunks); i++ {
			cand := a.chunks[i]
			cand.used = 0
			cs := alignUp(0, align)
			if cs+n <= len(cand.buf) {
				a.cur = i
				cand.used = cs + n
				out := cand.buf[cs : cs+n]
				clear(out)
				return out
			}
		}
		nc := &chunk{buf: make([]byte, a.chunkSize)}
		a.chunks = append(a.chunks, nc)
		a.cur = len(a.chunks) - 1
		nc.used = n
		return nc.buf[:n]
	}
	c.used = start + n
	out := c.buf[start : start+n]
	clear(out)
	return out
}

// Checkpoint is an opaque cursor into the arena's allocation history,
// valid for ResetTo until any Reset/New call invalidates it.
type Checkpoint struct {
	chunkIdx   int
	chunkUsed  int
	oversizeLn int
}

// Checkpoint records the current allocation position.
func (a *Arena) Checkpoint() Checkpoint {
	return Checkpoint{
		chunkIdx:   a.cur,
		chunkUsed:  a.chunks[a.cur].used,
		oversizeLn: len(a.oversize),
	}
}

// ResetTo frees everything allocated after cp was taken. Memory already
// owned by the arena's chunk chain is kept for reuse; oversize blocks
// allocated after cp are dropped for the GC to reclaim.
func (a *Arena) ResetTo(cp Checkpoint) {
	a.cur = cp.chunkIdx
	a.chunks[a.cur].used = cp.chunkUsed
	for i := a.cur + 1; i < len(a.chunks); i++ {
		a.chunks[i].used = 0
	}
	a.oversize = a.oversize[:cp.oversizeLn]
}

// Reset frees all allocations, returning the arena to its initial state
// while keeping every chunk's backing storage for reuse.
func (a *Arena) Reset() {
	a.cur = 0
	for _, c := range a.chunks {
		c.used = 0
	}
	a.oversize = nil
}

// Used returns the number of live bytes across the chunk chain, excluding
// oversize allocations — a cheap diagnostic for metrics.
func (a *Arena) Used() int {
	n := 0
	for i := 0; i <= a.cur; i++ {
		n += a.chunks[i].used
	}
	return n
}

// Cap returns the total backing capacity currently held by the chunk chain.
func (a *Arena) Cap() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c.buf)
	}
	return n
}

// AllocUint32 returns a []uint32 of length n backed by arena-owned
// storage, reinterpreting a raw byte allocation the same way the C engine
// casts its bump-allocated buckets/nexts/hashes arrays. Used for
// selection vectors and hash-table index arrays.
func AllocUint32(a *Arena, n int) []uint32 {
	if n <= 0 {
		return nil
	}
	buf := a.Alloc(n*4, 4)
	return unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), n)
}
