package xls

import "github.com/tangzhangming/vasm/internal/vir"

// Range is a half-open live range: start ∈,
// end ∉.
type Range struct {
	Start, End int32
}

func (r Range) Contains(pos int32) bool { return pos >= r.Start && pos < r.End }

func (r Range) Intersects(o Range) bool { return r.Start < o.End && o.Start < r.End }

// Use records one reference site.
type Use struct {
	Kind vir.Constraint
	Pos  int32
	Hint vir.VReg // InvalidVReg if none
}

// Interval is one node in a VReg's split chain.
type Interval struct {
	VReg vir.VReg

	// Root points at the chain's first interval (itself, for a root).
	// Next is the following child in start-order, nil for the chain's
	// tail. This is a slice-free singly linked chain,
	// calls for.
	Root *Interval
	Next *Interval

	Reg vir.PhysReg

	Wide      bool
	Constant  bool
	ConstKind vir.ConstKind
	ConstVal  int64

	// DefPos and slot are only meaningful read through the root; every
	// child shares them.
	DefPos int32
	slot   int32

	// ChainEnd is the last position the whole chain will ever cover,
	// fixed once at construction time before any split runs (splits
	// only carve the existing extent, never grow it). It lets spill
	// slot release compute a correct watermark without waiting for
	// every child to be produced.
	ChainEnd int32

	Ranges []Range
	Uses   []Use
}

// NewRootInterval allocates a fresh chain root for v.
func NewRootInterval(v vir.VReg) *Interval {
	iv := &Interval{VReg: v, Reg: vir.InvalidPhysReg, slot: -1, DefPos: -1}
	iv.Root = iv
	return iv
}

func (iv *Interval) IsRoot() bool { return iv.Root == iv }

func (iv *Interval) Slot() int32     { return iv.Root.slot }
func (iv *Interval) SetSlot(s int32) { iv.Root.slot = s }

func (iv *Interval) Start() int32 {
	if len(iv.Ranges) == 0 {
		return -1
	}
	return iv.Ranges[0].Start
}

func (iv *Interval) End() int32 {
	if len(iv.Ranges) == 0 {
		return -1
	}
	return iv.Ranges[len(iv.Ranges)-1].End
}

// Covers reports whether pos lies within a range, or exactly at the
// final range's end.
func (iv *Interval) Covers(pos int32) bool {
	for i, r := range iv.Ranges {
		if r.Contains(pos) {
			return true
		}
		if pos == r.End && i == len(iv.Ranges)-1 {
			return true
		}
	}
	return false
}

// Intersects reports whether iv and o share any covered position.
func (iv *Interval) Intersects(o *Interval) bool {
	return nextIntersect(iv, o) != posInfinity
}

// FirstUseAfter returns the position of the first use at or after pos,
// or posInfinity if none.
func (iv *Interval) FirstUseAfter(pos int32) int32 {
	for _, u := range iv.Uses {
		if u.Pos >= pos {
			return u.Pos
		}
	}
	return posInfinity
}

// FirstUse returns the position of the interval's earliest use, or
// posInfinity if it has none (a pure def-only interval).
func (iv *Interval) FirstUse() int32 {
	if len(iv.Uses) == 0 {
		return posInfinity
	}
	return iv.Uses[0].Pos
}

// ChildCovering walks the chain starting at the root to find the child
// whose ranges cover pos, used throughout resolution/rewriting.
func (iv *Interval) ChildCovering(pos int32) *Interval {
	for c := iv.Root; c != nil; c = c.Next {
		if c.Covers(pos) {
			return c
		}
	}
	return nil
}

// AppendChild links child onto the end of iv's chain (iv must be the
// current tail).
func (iv *Interval) AppendChild(child *Interval) {
	tail := iv.Root
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = child
	child.Root = iv.Root
}

const posInfinity = int32(1) << 30

// nextIntersect finds the smallest position covered by both
// intervals' range lists, found with a two-finger merge.
func nextIntersect(a, b *Interval) int32 {
	i, j := 0, 0
	for i < len(a.Ranges) && j < len(b.Ranges) {
		ra, rb := a.Ranges[i], b.Ranges[j]
		if ra.Intersects(rb) {
			if ra.Start > rb.Start {
				return ra.Start
			}
			return rb.Start
		}
		if ra.End <= rb.Start {
			i++
		} else {
			j++
		}
	}
	return posInfinity
}
