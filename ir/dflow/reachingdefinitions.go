package dflow

import "github.com/Urethramancer/decompiler/ir"

// Chunk pairs a memory location with the terms that may have defined it
// (spec.md §3 "ReachingDefinitions"). Grounded on
// _examples/original_source/src/nc/core/ir/dflow/ReachingDefinitions.h.
type Chunk struct {
	Location    ir.MemoryLocation
	Definitions []*ir.Term
}

// ReachingDefinitions tracks, for each tracked memory location, the set of
// terms whose write may still be visible at the current program point. The
// chunks are kept sorted by location (domain, offset, size) so merge can run
// as a linear sorted-merge rather than a full rescan.
type ReachingDefinitions struct {
	chunks []Chunk
}

// Empty reports whether no locations are tracked.
func (r ReachingDefinitions) Empty() bool {
	return len(r.chunks) == 0
}

// Clear discards all tracked definitions.
func (r *ReachingDefinitions) Clear() {
	r.chunks = nil
}

// Chunks returns the sorted chunk list.
func (r ReachingDefinitions) Chunks() []Chunk {
	return r.chunks
}

func (r *ReachingDefinitions) indexOf(loc ir.MemoryLocation) (int, bool) {
	lo, hi := 0, len(r.chunks)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.chunks[mid].Location.Less(loc) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.chunks) && r.chunks[lo].Location.Equal(loc) {
		return lo, true
	}
	return lo, false
}

// KillDefinitions removes every chunk overlapping loc.
func (r *ReachingDefinitions) KillDefinitions(loc ir.MemoryLocation) {
	out := r.chunks[:0]
	for _, c := range r.chunks {
		if !c.Location.Overlaps(loc) {
			out = append(out, c)
		}
	}
	r.chunks = out
}

// AddDefinition records term as the sole definition of loc, first killing
// every overlapping prior definition (spec.md §3 "addDefinition ... removing
// all previous definitions of overlapping memory locations").
func (r *ReachingDefinitions) AddDefinition(loc ir.MemoryLocation, term *ir.Term) {
	r.KillDefinitions(loc)
	idx, _ := r.indexOf(loc)
	r.chunks = append(r.chunks, Chunk{})
	copy(r.chunks[idx+1:], r.chunks[idx:])
	r.chunks[idx] = Chunk{Location: loc, Definitions: []*ir.Term{term}}
}

// Project returns the subset of chunks whose location overlaps loc. Each
// chunk is returned whole, with its own location, not trimmed to the
// overlapping bit range.
func (r *ReachingDefinitions) Project(loc ir.MemoryLocation) ReachingDefinitions {
	var out ReachingDefinitions
	for _, c := range r.chunks {
		if c.Location.Overlaps(loc) {
			out.chunks = append(out.chunks, c)
		}
	}
	return out
}

// GetDefinedMemoryLocationsWithin returns every tracked location in domain.
func (r *ReachingDefinitions) GetDefinedMemoryLocationsWithin(domain ir.Domain) []ir.MemoryLocation {
	var out []ir.MemoryLocation
	for _, c := range r.chunks {
		if c.Location.Domain == domain {
			out = append(out, c.Location)
		}
	}
	return out
}

func dedupTerms(terms []*ir.Term) []*ir.Term {
	seen := make(map[*ir.Term]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Merge adds every chunk of other into r, union-ing definitions lists for
// locations present in both (the join operator of the dataflow fixed-point
// iteration; spec.md §4.3, §8 invariant "join is commutative and
// associative").
func (r *ReachingDefinitions) Merge(other ReachingDefinitions) {
	merged := make([]Chunk, 0, len(r.chunks)+len(other.chunks))
	i, j := 0, 0
	for i < len(r.chunks) && j < len(other.chunks) {
		a, b := r.chunks[i], other.chunks[j]
		switch {
		case a.Location.Less(b.Location):
			merged = append(merged, a)
			i++
		case b.Location.Less(a.Location):
			merged = append(merged, b)
			j++
		default:
			defs := append(append([]*ir.Term{}, a.Definitions...), b.Definitions...)
			merged = append(merged, Chunk{Location: a.Location, Definitions: dedupTerms(defs)})
			i++
			j++
		}
	}
	merged = append(merged, r.chunks[i:]...)
	merged = append(merged, other.chunks[j:]...)
	r.chunks = merged
}

// Equal reports whether r and other track the same locations with the same
// definitions, listed in the same order.
func (r *ReachingDefinitions) Equal(other ReachingDefinitions) bool {
	if len(r.chunks) != len(other.chunks) {
		return false
	}
	for i, c := range r.chunks {
		o := other.chunks[i]
		if !c.Location.Equal(o.Location) || len(c.Definitions) != len(o.Definitions) {
			return false
		}
		for k, t := range c.Definitions {
			if t != o.Definitions[k] {
				return false
			}
		}
	}
	return true
}

// FilterOut removes every (location, term) pair for which pred returns true,
// then drops any chunk left with no definitions (supplemented feature,
// spec.md §6: used by liveness analysis to prune definitions of
// provably-dead terms without re-running the whole dataflow pass).
func (r *ReachingDefinitions) FilterOut(pred func(loc ir.MemoryLocation, term *ir.Term) bool) {
	out := r.chunks[:0]
	for _, c := range r.chunks {
		kept := c.Definitions[:0]
		for _, t := range c.Definitions {
			if !pred(c.Location, t) {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			c.Definitions = kept
			out = append(out, c)
		}
	}
	r.chunks = out
}
