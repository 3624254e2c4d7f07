package xls

import "github.com/tangzhangming/vasm/internal/diagnostics"

// SpillSlots is the fixed-capacity watermark table for the spill area
// ("spill_slots[i] is the position at which the slot becomes reusable,
// set to +∞ while owned"). A slot's watermark is known exactly at
// allocation time since a chain's total extent (Interval.ChainEnd) is
// fixed before any splitting happens, so slots never need an explicit
// release step — they're booked with their eventual free-at position
// up front.
type SpillSlots struct {
	freeAt   []int32
	capacity int // 0 means unlimited
}

func NewSpillSlots(capacity int) *SpillSlots {
	return &SpillSlots{capacity: capacity}
}

// Allocate reserves one slot (two contiguous slots for wide) usable
// starting at pos, reusing any slot(s) whose watermark has already
// passed, and returns the (first) slot index. releaseAt is the
// position after which the slot is free again — the owning chain's
// ChainEnd.
func (s *SpillSlots) Allocate(pos int32, wide bool, releaseAt int32) int32 {
	if !wide {
		for i, w := range s.freeAt {
			if w <= pos {
				s.freeAt[i] = releaseAt
				return int32(i)
			}
		}
		return s.grow(1, releaseAt)
	}

	for i := 0; i+1 < len(s.freeAt); i++ {
		if s.freeAt[i] <= pos && s.freeAt[i+1] <= pos {
			s.freeAt[i] = releaseAt
			s.freeAt[i+1] = releaseAt
			return int32(i)
		}
	}
	return s.grow(2, releaseAt)
}

func (s *SpillSlots) grow(n int, releaseAt int32) int32 {
	start := len(s.freeAt)
	if s.capacity > 0 && start+n > s.capacity {
		panic(diagnostics.NewPunt(diagnostics.X0100, -1,
			"spill slot watermark exceeded capacity %d requesting %d more slots", s.capacity, n))
	}
	for i := 0; i < n; i++ {
		s.freeAt = append(s.freeAt, releaseAt)
	}
	return int32(start)
}

func (s *SpillSlots) Count() int { return len(s.freeAt) }
