// Package telemetry records per-tick statistics of a running flock and writes them
// as CSV.
package telemetry

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// TickStats holds the statistics of one tick.
type TickStats struct {
	RunID   string `csv:"run_id"`
	Backend string `csv:"backend"`
	Tick    uint64 `csv:"tick"`
	Agents  int    `csv:"agents"`

	DeltaTime  float64 `csv:"dt"`
	TickMicros int64   `csv:"tick_us"`
	FrameRate  float64 `csv:"fps"`

	// Speed is derived from the displacement since the previous tick.
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedMax  float64 `csv:"speed_max"`

	// Distance to the flock center.
	DistanceMean float64 `csv:"dist_mean"`
	DistanceP50  float64 `csv:"dist_p50"`
	DistanceP90  float64 `csv:"dist_p90"`
	DistanceMax  float64 `csv:"dist_max"`

	// Agents farther from the center than the bounding sphere radius.
	Outside int `csv:"outside"`
}

// Sample is what the simulation hands to the recorder after a tick.
type Sample struct {
	RunID          string
	Backend        string
	Tick           uint64
	DeltaTime      float64
	Duration       time.Duration
	Center         geometry.Vector3D
	BoundingRadius float64
	Positions      []geometry.Vector3D
}

// ComputeStats summarizes positions. previous may be nil or of a different length, in
// which case the speed columns stay zero.
func ComputeStats(s Sample, previous []geometry.Vector3D) TickStats {
	ts := TickStats{
		RunID:      s.RunID,
		Backend:    s.Backend,
		Tick:       s.Tick,
		Agents:     len(s.Positions),
		DeltaTime:  s.DeltaTime,
		TickMicros: s.Duration.Microseconds(),
	}
	n := len(s.Positions)
	if n == 0 {
		return ts
	}

	distances := make([]float64, n)
	for i, p := range s.Positions {
		distances[i] = p.DistanceTo(s.Center)
		if distances[i] > s.BoundingRadius {
			ts.Outside++
		}
	}
	ts.DistanceMean, _ = meanStd(distances)
	ts.DistanceMax = floats.Max(distances)
	sort.Float64s(distances)
	ts.DistanceP50 = stat.Quantile(0.5, stat.Empirical, distances, nil)
	ts.DistanceP90 = stat.Quantile(0.9, stat.Empirical, distances, nil)

	if len(previous) == n && s.DeltaTime > 0 {
		speeds := make([]float64, n)
		for i, p := range s.Positions {
			speeds[i] = p.DistanceTo(previous[i]) / s.DeltaTime
		}
		ts.SpeedMean, ts.SpeedStd = meanStd(speeds)
		ts.SpeedMax = floats.Max(speeds)
	}
	return ts
}

// meanStd returns the mean and the sample standard deviation, 0 below two values.
func meanStd(x []float64) (mean, std float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
