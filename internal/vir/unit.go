package vir

import "fmt"

// Unit is a whole allocatable VIR program: a single unit of compilation
// the allocator rewrites in place.
type Unit struct {
	Blocks []*Block
	Entry  BlockLabel

	// Tuples backs `tuples[id] -> [VReg]` dereference for tuple
	// operands (copyargs, calls with >1 return value).
	Tuples [][]VReg

	// NextVReg is the next fresh virtual register id this unit would
	// hand out; liveness/interval bitsets are sized to it.
	NextVReg int32

	// NumSlots is populated by spill-space activation once the allocator
	// has decided how many 8-byte slots the stack spill area needs.
	NumSlots int
}

func NewUnit() *Unit {
	return &Unit{Entry: InvalidBlock}
}

// AddBlock creates and appends a fresh block, returning its label.
func (u *Unit) AddBlock() *Block {
	lbl := BlockLabel(len(u.Blocks))
	b := NewBlock(lbl)
	u.Blocks = append(u.Blocks, b)
	if u.Entry == InvalidBlock {
		u.Entry = lbl
	}
	return b
}

// Link records a CFG edge from -> to, updating both sides' Preds/Succs.
func (u *Unit) Link(from, to BlockLabel) {
	u.Blocks[from].Succs = append(u.Blocks[from].Succs, to)
	u.Blocks[to].Preds = append(u.Blocks[to].Preds, from)
}

// Block returns the block for a label.
func (u *Unit) Block(l BlockLabel) *Block { return u.Blocks[l] }

// Successors returns a block's successor labels.
func (u *Unit) Successors(l BlockLabel) []BlockLabel { return u.Blocks[l].Succs }

// AddTuple registers a new tuple operand and returns its id.
func (u *Unit) AddTuple(regs []VReg) TupleID {
	id := TupleID(len(u.Tuples))
	u.Tuples = append(u.Tuples, regs)
	return id
}

// Tuple dereferences a tuple operand to its underlying VReg list.
func (u *Unit) Tuple(id TupleID) []VReg {
	if id < 0 || int(id) >= len(u.Tuples) {
		return nil
	}
	return u.Tuples[id]
}

// NewVirtual hands out a fresh virtual register of the given class.
func (u *Unit) NewVirtual(class RegClass) VReg {
	id := u.NextVReg
	u.NextVReg++
	return NewVReg(id, class)
}

// NewFixed wraps a physical register as a VReg, drawing its id from the
// same dense space NewVirtual uses so liveness/interval bitsets sized
// to NextVReg cover it too.
func (u *Unit) NewFixed(class RegClass, p PhysReg) VReg {
	id := u.NextVReg
	u.NextVReg++
	return NewPhysVReg(id, class, p)
}

// SortBlocks computes a reverse-postorder-like order where loop-head
// predecessors may come
// later (a correct RPO is always also a valid order here; this module
// does not need to special-case irreducible loops since the allocator
// only requires *some* order where, ideally, most edges go forward).
func (u *Unit) SortBlocks() []BlockLabel {
	n := len(u.Blocks)
	visited := make([]bool, n)
	order := make([]BlockLabel, 0, n)

	var dfs func(BlockLabel)
	dfs = func(b BlockLabel) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range u.Blocks[b].Succs {
			dfs(s)
		}
		order = append(order, b)
	}
	if u.Entry != InvalidBlock {
		dfs(u.Entry)
	}
	for b := BlockLabel(0); b < BlockLabel(n); b++ {
		dfs(b)
	}
	// order is postorder; reverse it for RPO.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Validate runs the correctness check required before allocate():
// every successor label must be in range and symmetric with the
// target's Preds list. Reachability from Entry is not checked.
func (u *Unit) Validate() error {
	n := BlockLabel(len(u.Blocks))
	for _, b := range u.Blocks {
		for _, s := range b.Succs {
			if s < 0 || s >= n {
				return fmt.Errorf("block %d: successor %d out of range", b.Label, s)
			}
			if !containsLabel(u.Blocks[s].Preds, b.Label) {
				return fmt.Errorf("block %d -> %d: missing reverse predecessor edge", b.Label, s)
			}
		}
	}
	return nil
}

func containsLabel(xs []BlockLabel, x BlockLabel) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
