package xls

import (
	"testing"

	"github.com/tangzhangming/vasm/internal/diagnostics"
)

func TestSpillSlotsAllocateReusesWatermark(t *testing.T) {
	s := NewSpillSlots(0)

	first := s.Allocate(10, false, 20)
	if first != 0 {
		t.Fatalf("first Allocate = %d, want 0", first)
	}
	if s.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", s.Count())
	}

	// A second allocation starting before the watermark must grow.
	second := s.Allocate(15, false, 30)
	if second != 1 {
		t.Fatalf("second Allocate = %d, want 1 (should not reuse slot 0)", second)
	}

	// A third allocation starting after slot 0's watermark should reuse it.
	third := s.Allocate(25, false, 40)
	if third != 0 {
		t.Fatalf("third Allocate = %d, want 0 (slot 0 should be reusable after pos 20)", third)
	}
	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2 (no unnecessary growth)", s.Count())
	}
}

func TestSpillSlotsAllocateWideNeedsTwoContiguous(t *testing.T) {
	s := NewSpillSlots(0)
	s.Allocate(0, false, 100) // slot 0, busy past our test window

	wide := s.Allocate(10, true, 50)
	if wide == 0 {
		t.Fatalf("wide Allocate landed on busy slot 0: %d", wide)
	}
	if s.Count() != int(wide)+2 {
		t.Fatalf("Count() = %d, want %d after a wide allocation at %d", s.Count(), int(wide)+2, wide)
	}
}

func TestSpillSlotsAllocateReusesWideContiguousPair(t *testing.T) {
	s := NewSpillSlots(0)
	a := s.Allocate(0, true, 10)
	b := s.Allocate(5, true, 200) // forces growth past the first pair
	if b == a {
		t.Fatalf("second wide Allocate reused a still-live pair")
	}

	reused := s.Allocate(15, true, 300)
	if reused != a {
		t.Fatalf("reused = %d, want %d (the freed pair)", reused, a)
	}
}

func TestSpillSlotsCapacityExceededPunts(t *testing.T) {
	s := NewSpillSlots(1)
	s.Allocate(0, false, 100)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("exceeding capacity should panic with a Punt")
		}
		p, ok := r.(*diagnostics.Punt)
		if !ok {
			t.Fatalf("panic value is %T, want *diagnostics.Punt", r)
		}
		if p.Code != diagnostics.X0100 {
			t.Errorf("Code = %q, want %q", p.Code, diagnostics.X0100)
		}
	}()
	s.Allocate(10, false, 200)
}
