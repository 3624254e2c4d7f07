package xls

import "github.com/tangzhangming/vasm/internal/vir"

// AssignPositions gives every instruction an even position; an odd
// "label position" precedes the first instruction of each block,
// reserved for copies/spills inserted at block entry.
// When the first real instruction has any use, a nop is prepended so
// that use never straddles the block-entry boundary.
//
// order must be a valid block order; positions
// are assigned in that order, so blocks later in order get higher
// positions, matching the "RPO-like" requirement the allocator relies
// on for split/spill heuristics to behave sensibly.
func AssignPositions(u *vir.Unit, order []vir.BlockLabel) {
	pos := int32(0)
	for _, lbl := range order {
		b := u.Block(lbl)
		pos++ // odd label position before the block's first instruction
		if len(b.Instrs) > 0 && hasUse(b.Instrs[0]) {
			nop := vir.NewInstruction(vir.OpNop)
			b.Instrs = append([]*vir.Instruction{nop}, b.Instrs...)
		}
		b.Start = pos
		pos++ // advance past the odd label position to the first even instruction position
		for _, inst := range b.Instrs {
			inst.Pos = pos
			pos += 2
		}
		b.End = pos
	}
}

func hasUse(inst *vir.Instruction) bool {
	return len(inst.Uses) > 0 || len(inst.Acrosses) > 0 || len(inst.PhiSources) > 0 || len(inst.CopySrcs) > 0
}
