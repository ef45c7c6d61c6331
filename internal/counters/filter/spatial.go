package filter

import (
	"fmt"

	"countercraft.ai/internal/counters/rangespec"
)

// Spatial constrains block coordinates per axis. Each axis is either an
// inclusive range or an exclusion range.
type Spatial struct {
	Enabled bool           `json:"enabled"`
	X       rangespec.Spec `json:"x"`
	Y       rangespec.Spec `json:"y"`
	Z       rangespec.Spec `json:"z"`
}

func AnyWhere() Spatial {
	return Spatial{X: rangespec.Full(), Y: rangespec.Full(), Z: rangespec.Full()}
}

func (s Spatial) Check(p Vec3) (bool, string) {
	if !s.Enabled {
		return true, ""
	}
	x, y, z := p.Block()
	axes := [3]struct {
		name string
		v    int64
		r    rangespec.Spec
	}{{"x", x, s.X}, {"y", y, s.Y}, {"z", z, s.Z}}
	for _, a := range axes {
		if !a.r.Passes(a.v) {
			return false, fmt.Sprintf("%s=%d not in %s", a.name, a.v, rangespec.Format(a.r))
		}
	}
	return true, ""
}
