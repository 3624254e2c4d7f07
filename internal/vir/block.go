package vir

// BlockLabel is a dense index into Unit.Blocks.
type BlockLabel int32

const InvalidBlock BlockLabel = -1

// Block is one basic block of the VIR. Start/End are the half-open
// half-open position range the allocator assigns to it, "[start,end)",
// including the odd label position before the first real instruction.
type Block struct {
	Label  BlockLabel
	Instrs []*Instruction
	Preds  []BlockLabel
	Succs  []BlockLabel

	Start int32
	End   int32

	// SPOffsetIn/Out are filled in by the stack-pointer offset analysis;
	// sentinelSP means "not yet computed".
	SPOffsetIn  int32
	SPOffsetOut int32

	// Cold marks a block synthesized by spill-space activation to host a
	// `free` before an expanded conditional unit exit.
	Cold bool
}

func NewBlock(label BlockLabel) *Block {
	return &Block{Label: label, SPOffsetIn: sentinelSP, SPOffsetOut: sentinelSP}
}

const sentinelSP = int32(1) << 30

func (b *Block) HasSPOffsetIn() bool  { return b.SPOffsetIn != sentinelSP }
func (b *Block) HasSPOffsetOut() bool { return b.SPOffsetOut != sentinelSP }

// AddInstr appends an instruction to the block.
func (b *Block) AddInstr(inst *Instruction) { b.Instrs = append(b.Instrs, inst) }

// Terminator returns the block's last instruction, or nil if empty.
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}
