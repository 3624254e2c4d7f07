package xls

import (
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/vir"
)

// split produces a new
// child interval owning the portion of current's ranges at or after
// pos (splitting the straddling range if one exists), and moves the
// uses that belong on the far side of the cut — strictly at/after pos,
// or (when keepUses) strictly after the end of the kept portion, which
// lets the caller keep a use that sits exactly on the cut with the
// first half.
func split(current *Interval, pos int32, keepUses bool) *Interval {
	diagnostics.Assertf(current.Start() < pos && pos < current.End(),
		"split at %d outside (%d,%d)", pos, current.Start(), current.End())

	var keepRanges, childRanges []Range
	for _, r := range current.Ranges {
		switch {
		case r.End <= pos:
			keepRanges = append(keepRanges, r)
		case r.Start >= pos:
			childRanges = append(childRanges, r)
		default:
			keepRanges = append(keepRanges, Range{r.Start, pos})
			childRanges = append(childRanges, Range{pos, r.End})
		}
	}
	diagnostics.Assertf(len(keepRanges) > 0 && len(childRanges) > 0,
		"split at %d produced an empty half", pos)

	endOfFirst := keepRanges[len(keepRanges)-1].End

	var keepUsesList, childUsesList []Use
	for _, u := range current.Uses {
		moveToChild := u.Pos >= pos
		if keepUses {
			moveToChild = u.Pos > endOfFirst
		}
		if moveToChild {
			childUsesList = append(childUsesList, u)
		} else {
			keepUsesList = append(keepUsesList, u)
		}
	}

	child := &Interval{
		VReg:      current.VReg,
		Reg:       vir.InvalidPhysReg,
		Wide:      current.Wide,
		Constant:  current.Constant,
		ConstKind: current.ConstKind,
		ConstVal:  current.ConstVal,
		Ranges:    childRanges,
		Uses:      childUsesList,
	}

	current.Ranges = keepRanges
	current.Uses = keepUsesList

	current.AppendChild(child)
	return child
}

// nearestSplitBefore returns pos itself if it lands exactly at a
// block start, otherwise the previous odd "between instructions"
// position (instructions sit at even positions; odd positions are
// always valid split points).
func (s *Session) nearestSplitBefore(pos int32) int32 {
	if s.blockStarts[pos] {
		return pos
	}
	if pos%2 == 0 {
		return pos - 1
	}
	return pos - 2
}

// refineSplitPosition slides a chosen split point back to the start of
// its enclosing range when that range has no uses of current between
// its start and the split point while an earlier range does, avoiding
// an edge move into a dead span that never reads the value. A range
// can span several contiguous dead blocks merged backward during
// interval construction, so the enclosing range's start may sit well
// before the block containing pos — walking current's own range list,
// not blockOf(pos), is what finds it.
func (s *Session) refineSplitPosition(current *Interval, pos int32) int32 {
	if pos <= current.Start() {
		return pos
	}
	rangeStart := enclosingRangeStart(current, pos)
	if rangeStart < 0 || rangeStart <= current.Start() {
		return pos
	}
	hasUseInRange := false
	for _, u := range current.Uses {
		if u.Pos >= rangeStart && u.Pos < pos {
			hasUseInRange = true
			break
		}
	}
	hasEarlierUse := false
	for _, u := range current.Uses {
		if u.Pos < rangeStart {
			hasEarlierUse = true
			break
		}
	}
	if !hasUseInRange && hasEarlierUse {
		return rangeStart
	}
	return pos
}

// enclosingRangeStart returns the Start of the Range in current.Ranges
// that contains pos (or that ends exactly at pos, matching Covers'
// own boundary rule), or -1 if none does.
func enclosingRangeStart(current *Interval, pos int32) int32 {
	for i, r := range current.Ranges {
		if r.Contains(pos) || (pos == r.End && i == len(current.Ranges)-1) {
			return r.Start
		}
	}
	return -1
}
