// Package vars implements variable reconstruction (spec.md §4.6): merging
// memory locations accessed by overlapping terms into a single recovered
// variable, via a union-find over location cells.
//
// The disjoint-set technique mirrors
// _examples/original_source/src/nc/core/ir/types/Type.h's DisjointSet-based
// Type union-find (ir/types reuses the same pattern for its own, separate
// concern); this package's merge rule is spec.md §4.6's own.
package vars

import "github.com/Urethramancer/decompiler/ir"

// Variables maps memory locations to a recovered variable id: every
// location unioned together by an overlapping-access edge shares one id.
type Variables struct {
	parent map[ir.MemoryLocation]ir.MemoryLocation
	rank   map[ir.MemoryLocation]int
	locs   []ir.MemoryLocation
	seen   map[ir.MemoryLocation]bool
}

// New creates an empty union-find; every location starts in its own set
// the first time it is observed (spec.md §4.6 "the initial set is one cell
// per location").
func New() *Variables {
	return &Variables{
		parent: make(map[ir.MemoryLocation]ir.MemoryLocation),
		rank:   make(map[ir.MemoryLocation]int),
		seen:   make(map[ir.MemoryLocation]bool),
	}
}

func (v *Variables) observe(loc ir.MemoryLocation) {
	if v.seen[loc] {
		return
	}
	v.seen[loc] = true
	v.parent[loc] = loc
	v.locs = append(v.locs, loc)
}

// Find returns the representative location of loc's set, path-compressing
// along the way.
func (v *Variables) Find(loc ir.MemoryLocation) ir.MemoryLocation {
	v.observe(loc)
	root := loc
	for v.parent[root] != root {
		root = v.parent[root]
	}
	for v.parent[loc] != root {
		v.parent[loc], loc = root, v.parent[loc]
	}
	return root
}

// Union merges the sets containing a and b (union by rank).
func (v *Variables) Union(a, b ir.MemoryLocation) {
	ra, rb := v.Find(a), v.Find(b)
	if ra == rb {
		return
	}
	if v.rank[ra] < v.rank[rb] {
		ra, rb = rb, ra
	}
	v.parent[rb] = ra
	if v.rank[ra] == v.rank[rb] {
		v.rank[ra]++
	}
}

// Locations returns every location observed so far.
func (v *Variables) Locations() []ir.MemoryLocation {
	return v.locs
}

// VariableID returns a stable identifier for loc's recovered variable: the
// set's representative location, which code generation can use as a
// variable-naming key.
func (v *Variables) VariableID(loc ir.MemoryLocation) ir.MemoryLocation {
	return v.Find(loc)
}

// Reconstruct runs variable reconstruction over fn: whenever some term
// spans a bit range overlapping two previously-distinct locations (a term
// reading/writing across both), their sets are unioned. crossingTerms
// yields, for each term in the function, the set of memory locations it
// overlaps (the caller supplies this from its own dataflow/type results,
// since memory-location occupancy depends on pass-specific resolution of
// Dereference addresses).
func Reconstruct(fn *ir.Function, crossingTerms func(*ir.Term) []ir.MemoryLocation) *Variables {
	v := New()
	for _, b := range fn.Blocks() {
		for _, s := range b.Statements() {
			for _, t := range s.Terms() {
				ir.Walk(t, func(term *ir.Term) {
					locs := crossingTerms(term)
					for _, l := range locs {
						v.observe(l)
					}
					for i := 1; i < len(locs); i++ {
						v.Union(locs[0], locs[i])
					}
				})
			}
		}
	}
	return v
}
