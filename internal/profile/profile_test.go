package profile

import (
	"bytes"
	"testing"
)

func TestDisabledProfilerRecordsNothing(t *testing.T) {
	p := New(false)
	p.Begin("pass")
	p.Count("pass", "x", 5)
	p.End("pass")

	if len(p.Stats()) != 0 {
		t.Errorf("Stats() = %v, want empty when disabled", p.Stats())
	}
}

func TestEnabledProfilerRecordsStatsAndCounters(t *testing.T) {
	p := New(true)
	p.Begin("intervals")
	p.Count("intervals", "built", 3)
	p.Count("intervals", "built", 2)
	p.End("intervals")

	stats := p.Stats()
	if len(stats) != 1 {
		t.Fatalf("Stats() len = %d, want 1", len(stats))
	}
	if stats[0].Name != "intervals" {
		t.Errorf("Name = %q, want intervals", stats[0].Name)
	}
	if stats[0].Counters["built"] != 5 {
		t.Errorf("Counters[built] = %d, want 5", stats[0].Counters["built"])
	}
}

func TestEndWithoutBeginIsIgnored(t *testing.T) {
	p := New(true)
	p.End("never-started")
	if len(p.Stats()) != 0 {
		t.Error("End without a matching Begin should not record a Stat")
	}
}

func TestReportWritesEveryStat(t *testing.T) {
	p := New(true)
	p.Begin("a")
	p.End("a")
	p.Begin("b")
	p.End("b")

	var buf bytes.Buffer
	if err := p.Report(&buf); err != nil {
		t.Fatalf("Report: %v", err)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("a")) || !bytes.Contains([]byte(out), []byte("b")) {
		t.Errorf("Report output %q should mention both passes", out)
	}
}
