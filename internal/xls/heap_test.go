package xls

import (
	"testing"

	"github.com/tangzhangming/vasm/internal/vir"
)

func ivAt(start, end int32) *Interval {
	iv := NewRootInterval(vir.NewVReg(0, vir.ClassGP64))
	iv.Ranges = []Range{{start, end}}
	return iv
}

func TestIntervalHeapOrdersByStart(t *testing.T) {
	h := newIntervalHeap()
	h.init()

	h.PushInterval(ivAt(30, 40))
	h.PushInterval(ivAt(10, 20))
	h.PushInterval(ivAt(20, 25))

	var starts []int32
	for !h.Empty() {
		starts = append(starts, h.PopInterval().Start())
	}
	want := []int32{10, 20, 30}
	for i, s := range want {
		if starts[i] != s {
			t.Fatalf("pop order = %v, want %v", starts, want)
		}
	}
}

func TestIntervalHeapBreaksTiesByInsertionOrder(t *testing.T) {
	h := newIntervalHeap()
	h.init()

	first := ivAt(5, 10)
	second := ivAt(5, 10)
	h.PushInterval(first)
	h.PushInterval(second)

	if got := h.PopInterval(); got != first {
		t.Error("equal-start intervals should pop in insertion order (first pushed, first popped)")
	}
	if got := h.PopInterval(); got != second {
		t.Error("second interval should pop after the first")
	}
}

func TestIntervalHeapEmpty(t *testing.T) {
	h := newIntervalHeap()
	h.init()
	if !h.Empty() {
		t.Error("fresh heap should be Empty")
	}
}
