package diagnostics

import "go.uber.org/zap"

// Reporter accumulates punts raised while allocating one unit, mirroring
// a compiler diagnostics reporter without the source-file cache (VIR
// units carry no source text).
type Reporter struct {
	punts []*Punt
	log   *zap.Logger
}

func NewReporter(log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log}
}

func (r *Reporter) Report(p *Punt) {
	r.punts = append(r.punts, p)
	r.log.Warn("punt", zap.String("code", p.Code), zap.Int32("pos", p.Pos), zap.String("message", p.Message))
}

func (r *Reporter) HasPunts() bool { return len(r.punts) > 0 }

func (r *Reporter) Punts() []*Punt { return r.punts }

func (r *Reporter) Clear() { r.punts = nil }

// Dump renders every accumulated punt through Format, in report order.
func (r *Reporter) Dump() string {
	var out string
	for _, p := range r.punts {
		out += Format(p)
	}
	return out
}
