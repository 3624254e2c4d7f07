package diagnostics

import "fmt"

// Punt is a recoverable "stop allocating this unit" condition. It implements error so callers already propagating
// error values don't need a second channel, but cmd/xlsc reports it
// through Format instead of err.Error() so it gets the code/position
// banner a familiar CompileError type gets.
type Punt struct {
	Code    string
	Message string
	Block   int32 // vir.BlockLabel, kept as int32 to avoid importing vir here
	Pos     int32 // position within the unit, -1 if not applicable
}

func (p *Punt) Error() string {
	return fmt.Sprintf("[%s] %s", p.Code, p.Message)
}

// NewPunt builds a Punt at a given position; pass pos=-1 when the punt
// isn't tied to one instruction.
func NewPunt(code string, pos int32, format string, args ...any) *Punt {
	return &Punt{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Format renders p as a colorized code/message line plus a position
// marker.
func Format(p *Punt) string {
	head := Colorize(p.Level(), ColorBoldRed)
	code := Colorize(fmt.Sprintf("[%s]", p.Code), ColorBoldRed)
	if p.Pos >= 0 {
		loc := Colorize(fmt.Sprintf("pos %d", p.Pos), ColorCyan)
		return fmt.Sprintf("%s%s: %s\n  --> %s\n", head, code, p.Message, loc)
	}
	return fmt.Sprintf("%s%s: %s\n", head, code, p.Message)
}

// Level always reports "punt" today; kept as a method (rather than a
// bare string) since warnings may grow a second constructor later.
func (p *Punt) Level() string { return LevelPunt.String() + ": " }

// AssertionError is what Assertf panics with — a bug in the allocator
// itself, never a condition the caller should catch and retry, which is
// why it panics rather than returning an error (mirrors a familiar
// assertx idiom for internal invariants).
type AssertionError struct {
	Message string
}

func (a *AssertionError) Error() string { return "assertion failed: " + a.Message }

// Assertf panics with an *AssertionError when cond is false. Used
// throughout internal/xls for the invariants vasm-xls.cpp enforces with
// assertx (e.g. "the split position lies inside the interval", "every
// vreg has live ranges after interval construction").
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&AssertionError{Message: fmt.Sprintf(format, args...)})
	}
}
