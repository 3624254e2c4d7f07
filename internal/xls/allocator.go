package xls

import (
	"github.com/tangzhangming/vasm/internal/diagnostics"
	"github.com/tangzhangming/vasm/internal/trace"
	"github.com/tangzhangming/vasm/internal/vir"
)

// Allocator runs the extended linear-scan main loop over one session's
// intervals.
type Allocator struct {
	sess     *Session
	pending  *intervalHeap
	active   []*Interval
	inactive []*Interval
	slots    *SpillSlots
	roots    map[int32]*Interval
}

// Run drives the allocation loop to completion, seeding fixed and
// constant intervals first. It returns the intervals the loop
// processed plus those still active or inactive at the end; an interval
// may appear more than once, and constant roots and the tails split off
// and spilled in one step are not included. Resolution walks chains
// from the roots map, not from this list.
func (s *Session) Run(roots map[int32]*Interval) (all []*Interval, err error) {
	defer func() {
		if r := recover(); r != nil {
			if p, ok := r.(*diagnostics.Punt); ok {
				s.Diag.Report(p)
				err = p
				return
			}
			panic(r)
		}
	}()

	al := &Allocator{
		sess:    s,
		pending: newIntervalHeap(),
		slots:   NewSpillSlots(s.Cfg.Run.SpillCapacity),
		roots:   roots,
	}
	for i, n := 0, s.stressExtraSlots(); i < n; i++ {
		al.slots.Allocate(0, false, posInfinity)
	}

	for _, fixed := range s.FR.All() {
		if root, ok := roots[fixed.ID()]; ok {
			root.Reg = fixed.AsPhysReg()
			al.active = append(al.active, root)
		}
	}

	for _, root := range roots {
		if root.VReg.Physical() {
			continue // already seeded above
		}
		if root.Constant {
			al.spillInterval(root)
			continue
		}
		al.pending.PushInterval(root)
	}
	al.pending.init()

	for !al.pending.Empty() {
		current := al.pending.PopInterval()
		al.update(current.Start())
		al.allocate(current)
		all = append(all, current)
	}
	for _, a := range al.active {
		all = append(all, a)
	}
	for _, a := range al.inactive {
		all = append(all, a)
	}
	s.usedSlots = al.slots.Count()
	return all, nil
}

// update performs the per-iteration housekeeping: evict expired
// intervals, and flip the active/inactive polarity of anything that no
// longer (or now again) covers pos.
func (al *Allocator) update(pos int32) {
	var stillActive []*Interval
	for _, a := range al.active {
		switch {
		case a.End() <= pos:
			// expired
		case a.Covers(pos):
			stillActive = append(stillActive, a)
		default:
			al.inactive = append(al.inactive, a)
		}
	}
	al.active = stillActive

	var stillInactive []*Interval
	for _, a := range al.inactive {
		switch {
		case a.End() <= pos:
			// expired
		case a.Covers(pos):
			al.active = append(al.active, a)
		default:
			stillInactive = append(stillInactive, a)
		}
	}
	al.inactive = stillInactive
}

func classUniverse(a *abiBundle, class vir.RegClass) vir.RegSet {
	switch {
	case class.IsGP():
		return a.gp
	case class.IsSIMD():
		return a.simd
	case class == vir.ClassFlags:
		return a.sf
	default:
		return a.gp.Union(a.simd)
	}
}

// abiBundle flattens the ABI's unreserved sets once per allocate() call.
type abiBundle struct {
	gp, simd, sf vir.RegSet
}

func (al *Allocator) universe() *abiBundle {
	a := al.sess.ABI
	return &abiBundle{gp: a.GPUnreserved, simd: a.SIMDUnreserved, sf: vir.RegSet(0).Add(a.SF)}
}

func constraintUniverse(c vir.Constraint, b *abiBundle) vir.RegSet {
	switch c {
	case vir.ConstraintGpr:
		return b.gp
	case vir.ConstraintSimd:
		return b.simd
	case vir.ConstraintSf:
		return b.sf
	default:
		return b.gp.Union(b.simd).Union(b.sf)
	}
}

// allocate assigns current a register or a spill slot: constrain,
// freedom map, opportunistic split, hint, pick, and (on exhaustion)
// blocked allocation.
func (al *Allocator) allocate(current *Interval) {
	bundle := al.universe()
	allow := classUniverse(bundle, current.VReg.Class())

	// 1. constrain
	conflict := posInfinity
	for _, u := range current.Uses {
		m := constraintUniverse(u.Kind, bundle)
		narrowed := allow.Intersect(m)
		if narrowed.Empty() {
			conflict = u.Pos - 1
			break
		}
		allow = narrowed
	}

	// 2. freedom map
	freeUntil := make(map[vir.PhysReg]int32)
	allow.ForEach(func(r vir.PhysReg) { freeUntil[r] = conflict })
	for _, a := range al.active {
		if a.Reg.IsValid() && allow.Contains(a.Reg) {
			freeUntil[a.Reg] = 0
		}
	}
	for _, a := range al.inactive {
		if a.Reg.IsValid() && allow.Contains(a.Reg) {
			ni := nextIntersect(current, a)
			if ni < freeUntil[a.Reg] {
				freeUntil[a.Reg] = ni
			}
		}
	}

	// 3. opportunistic split: only considered when current has a hole
	// (more than one range) and only against the first range's own end
	// — a value whose first range merely runs to the current block's end
	// is the ordinary live-through case and must not be split here.
	if b := al.sess.blockOf(current.Start()); len(current.Ranges) > 1 && b != nil {
		firstEnd := current.Ranges[0].End
		if b.End > firstEnd {
			child := split(current, firstEnd, false)
			al.sess.Trace.Emit(trace.EventSplit, current.VReg.ID(), firstEnd, "opportunistic")
			al.pending.PushInterval(child)
		} else if current.Constant && current.FirstUse() >= b.End {
			// Not worth holding a register across the hole for a known
			// immediate: peel off this segment (it has no use of its
			// own) and let the remainder re-enter allocation fresh in
			// whatever later block actually reads it; materialization
			// re-loads the literal at that child's start rather than
			// threading a register or slot all the way from here.
			splitPos := al.sess.nearestSplitBefore(current.FirstUse())
			if splitPos > current.Start() && splitPos < current.End() {
				child := split(current, splitPos, false)
				al.pending.PushInterval(child)
			}
			return
		}
	}

	// 4. hint
	var hinted vir.PhysReg = vir.InvalidPhysReg
	for _, u := range current.Uses {
		if !u.Hint.IsValid() {
			continue
		}
		r, ok := al.resolveHint(u.Hint, u.Pos, current.Root.DefPos)
		if !ok || !allow.Contains(r) {
			continue
		}
		if freeUntil[r] >= current.End() {
			al.assign(current, r)
			return
		}
		if hinted == vir.InvalidPhysReg || freeUntil[r] > freeUntil[hinted] {
			hinted = r
		}
	}

	// 5. pick: argmax free_until, preferring the hinted register on ties.
	best := vir.InvalidPhysReg
	allow.ForEach(func(r vir.PhysReg) {
		if best == vir.InvalidPhysReg || freeUntil[r] > freeUntil[best] {
			best = r
		}
	})
	if hinted != vir.InvalidPhysReg && freeUntil[hinted] == freeUntil[best] {
		best = hinted
	}

	if best == vir.InvalidPhysReg {
		al.blockedAllocation(current, bundle, allow)
		return
	}

	if freeUntil[best] >= current.End() {
		al.assign(current, best)
		return
	}
	if freeUntil[best] > current.Start() {
		splitPos := al.sess.nearestSplitBefore(freeUntil[best])
		splitPos = al.sess.refineSplitPosition(current, splitPos)
		child := split(current, splitPos, true)
		al.sess.Trace.Emit(trace.EventSplit, current.VReg.ID(), splitPos, "to allocate")
		al.pending.PushInterval(child)
		al.assign(current, best)
		return
	}

	al.blockedAllocation(current, bundle, allow)
}

// resolveHint resolves a use's register hint to a concrete PhysReg. A
// fixed-register hint always resolves directly; a hint naming another
// vreg's chain only resolves for the def-position use (pos ==
// current.DefPos), and only by walking that vreg's own chain — not the
// active/inactive pools, which by the time allocate() runs for current
// have already expired exactly the child this is looking for — for a
// child whose own end coincides exactly with pos; anything else
// forgoes the hint.
func (al *Allocator) resolveHint(hint vir.VReg, pos int32, defPos int32) (vir.PhysReg, bool) {
	if hint.Physical() {
		return hint.AsPhysReg(), true
	}
	if pos != defPos {
		return vir.InvalidPhysReg, false
	}
	root, ok := al.roots[hint.ID()]
	if !ok {
		return vir.InvalidPhysReg, false
	}
	for iv := root; iv != nil; iv = iv.Next {
		if iv.End() == pos && iv.Reg.IsValid() {
			return iv.Reg, true
		}
	}
	return vir.InvalidPhysReg, false
}

func (al *Allocator) assign(iv *Interval, r vir.PhysReg) {
	iv.Reg = r
	al.active = append(al.active, iv)
	al.sess.Trace.Emit(trace.EventAssigned, iv.VReg.ID(), iv.Start(), "r=%d", r)
}

// blockedAllocation handles the case where no register was free long
// enough: spill or split whatever is in the way, or spill current
// itself.
func (al *Allocator) blockedAllocation(current *Interval, bundle *abiBundle, allow vir.RegSet) {
	used := make(map[vir.PhysReg]int32)
	blocked := make(map[vir.PhysReg]int32)
	allow.ForEach(func(r vir.PhysReg) {
		used[r] = posInfinity
		blocked[r] = posInfinity
	})

	for _, a := range al.active {
		if a.Reg.IsValid() && allow.Contains(a.Reg) {
			nu := a.FirstUseAfter(current.Start())
			if nu < used[a.Reg] {
				used[a.Reg] = nu
			}
		}
	}
	for _, a := range al.inactive {
		if a.Reg.IsValid() && allow.Contains(a.Reg) {
			blk := nextIntersect(current, a)
			if blk < blocked[a.Reg] {
				blocked[a.Reg] = blk
			}
		}
	}

	r := vir.InvalidPhysReg
	allow.ForEach(func(cand vir.PhysReg) {
		if r == vir.InvalidPhysReg || used[cand] > used[r] {
			r = cand
		}
	})
	if r == vir.InvalidPhysReg {
		panic(diagnostics.NewPunt(diagnostics.X0001, current.Start(),
			"LinearScan_TooManySpills: no candidate register for vreg %s", current.VReg))
	}

	if used[r] < current.FirstUse() {
		al.sess.Trace.Emit(trace.EventBlocked, current.VReg.ID(), current.Start(), "no free register before first use")
		al.spillInterval(current)
		return
	}

	if blocked[r] < current.End() {
		splitPos := al.sess.nearestSplitBefore(blocked[r])
		child := split(current, splitPos, false)
		al.sess.Trace.Emit(trace.EventSplit, current.VReg.ID(), splitPos, "blocked")
		al.pending.PushInterval(child)
	}

	al.spillOthers(current, r)
	al.assign(current, r)
}

// spillOthers evicts r from whatever is holding it: every
// active/inactive interval that was holding r and conflicts with
// current's remaining lifetime gets truncated and its tail spilled.
func (al *Allocator) spillOthers(current *Interval, r vir.PhysReg) {
	var keepActive []*Interval
	for _, a := range al.active {
		if a.Reg != r {
			keepActive = append(keepActive, a)
			continue
		}
		al.splitAndSpillTail(a, current.Start())
	}
	al.active = keepActive

	var keepInactive []*Interval
	for _, a := range al.inactive {
		if a.Reg != r || !a.Intersects(current) {
			keepInactive = append(keepInactive, a)
			continue
		}
		al.splitAndSpillTail(a, current.Start())
	}
	al.inactive = keepInactive
}

func (al *Allocator) splitAndSpillTail(owner *Interval, before int32) {
	splitPos := al.sess.nearestSplitBefore(before)
	if splitPos <= owner.Start() {
		al.spillInterval(owner)
		return
	}
	if splitPos >= owner.End() {
		return
	}
	tail := split(owner, splitPos, false)
	al.spillInterval(tail)
}

// spillInterval assigns iv a spill slot instead of a register.
func (al *Allocator) spillInterval(iv *Interval) {
	iv.Reg = vir.InvalidPhysReg
	if iv.Root.Slot() < 0 {
		slot := al.slots.Allocate(iv.Root.Start(), iv.Wide, iv.Root.ChainEnd)
		iv.Root.SetSlot(slot)
	}
	al.sess.Trace.Emit(trace.EventSpilled, iv.VReg.ID(), iv.Start(), "slot=%d", iv.Root.Slot())
}
