package simulation

import (
	"errors"
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

// ErrDiverged is returned by CompareHandlers when the positions differ by more than
// the tolerance.
var ErrDiverged = errors.New("simulation: backends diverged")

// Comparison is the outcome of running two handlers in lockstep.
type Comparison struct {
	Ticks      int
	MaxDelta   float64
	WorstTick  int
	WorstAgent int
}

func (c Comparison) String() string {
	return fmt.Sprintf("%d ticks, max delta %.3g (tick %d, agent %d)", c.Ticks, c.MaxDelta, c.WorstTick, c.WorstAgent)
}

// CompareHandlers enables a and b, ticks both ticks times by dt and measures the largest
// per-component position difference. Both handlers must start from the same positions,
// which is the case for handlers of the same configuration and seed. Both are disabled
// on return. A delta above tolerance stops the run with ErrDiverged.
func CompareHandlers(a, b *flock.Handler, ticks int, dt, tolerance float64) (Comparison, error) {
	var cmp Comparison
	for _, h := range []*flock.Handler{a, b} {
		if err := h.Enable(); err != nil {
			a.Disable()
			return cmp, fmt.Errorf("enable %q: %w", h.Name(), err)
		}
	}
	defer a.Disable()
	defer b.Disable()

	for tick := 1; tick <= ticks; tick++ {
		if err := a.Tick(dt); err != nil {
			return cmp, fmt.Errorf("tick %d on %q: %w", tick, a.Name(), err)
		}
		if err := b.Tick(dt); err != nil {
			return cmp, fmt.Errorf("tick %d on %q: %w", tick, b.Name(), err)
		}
		pa, err := a.Positions().Vectors()
		if err != nil {
			return cmp, err
		}
		pb, err := b.Positions().Vectors()
		if err != nil {
			return cmp, err
		}
		if len(pa) != len(pb) {
			return cmp, fmt.Errorf("%w: %d agents against %d", ErrDiverged, len(pa), len(pb))
		}
		for i := range pa {
			d := pa[i].Sub(pb[i])
			if delta := max(math.Abs(d.X), math.Abs(d.Y), math.Abs(d.Z)); delta > cmp.MaxDelta {
				cmp.MaxDelta, cmp.WorstTick, cmp.WorstAgent = delta, tick, i
			}
		}
		cmp.Ticks = tick
		if cmp.MaxDelta > tolerance {
			return cmp, fmt.Errorf("%w: %s", ErrDiverged, cmp)
		}
	}
	return cmp, nil
}
