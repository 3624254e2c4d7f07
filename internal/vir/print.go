package vir

import (
	"fmt"
	"strings"
)

// Dump renders the unit in a readable textual form, used by cmd/xlsc
// and by tests asserting on allocator output (mirrors a familiar
// PrintIR/PrintIRToConsole convention of a plain human-readable dump
// rather than a round-trippable syntax).
func (u *Unit) Dump() string {
	var sb strings.Builder
	for _, b := range u.Blocks {
		fmt.Fprintf(&sb, "B%d: ; pos=[%d,%d) sp_in=%d sp_out=%d\n", b.Label, b.Start, b.End, b.SPOffsetIn, b.SPOffsetOut)
		if len(b.Preds) > 0 {
			fmt.Fprintf(&sb, "  ; preds=%v\n", b.Preds)
		}
		for _, inst := range b.Instrs {
			fmt.Fprintf(&sb, "  %4d: %s\n", inst.Pos, inst.String())
		}
	}
	return sb.String()
}

func (inst *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(inst.Op.String())
	for _, d := range inst.Defs {
		fmt.Fprintf(&sb, " %s=def", d.Reg)
	}
	for _, u := range inst.Uses {
		fmt.Fprintf(&sb, " %s=use", u.Reg)
	}
	for _, a := range inst.Acrosses {
		fmt.Fprintf(&sb, " %s=across", a.Reg)
	}
	if inst.HasImm {
		fmt.Fprintf(&sb, " imm=%d", inst.Imm)
	}
	if len(inst.Targets) > 0 {
		fmt.Fprintf(&sb, " -> %v", inst.Targets)
	}
	if inst.comment != "" {
		fmt.Fprintf(&sb, " ; %s", inst.comment)
	}
	return sb.String()
}
