package telemetry

import (
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Recorder turns tick samples into TickStats, writes them out and logs a summary every
// LogEvery ticks. It keeps the previous positions of the current run to derive speeds.
// A Recorder is driven by a single goroutine.
type Recorder struct {
	out      *CSVWriter
	logger   log.Logger
	logEvery uint64
	fps      *FramerateCounter

	runID    string
	previous []geometry.Vector3D
	last     TickStats
	samples  uint64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithOutput writes every TickStats row to out.
func WithOutput(out *CSVWriter) RecorderOption {
	return func(r *Recorder) { r.out = out }
}

// WithLogger sets the logger used for periodic summaries.
func WithLogger(l log.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithLogEvery logs a summary every n ticks, never when n is 0.
func WithLogEvery(n uint64) RecorderOption {
	return func(r *Recorder) { r.logEvery = n }
}

// NewRecorder returns a recorder with no output.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		logger: log.DiscardLogger,
		fps:    NewFramerateCounter(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe records one tick. A sample of a new run resets the speed baseline.
func (r *Recorder) Observe(s Sample) (TickStats, error) {
	if s.RunID != r.runID {
		r.runID = s.RunID
		r.previous = r.previous[:0]
	}
	r.fps.Update(s.Duration)

	stats := ComputeStats(s, r.previous)
	stats.FrameRate = r.fps.FrameRate()
	r.previous = append(r.previous[:0], s.Positions...)
	r.last = stats
	r.samples++

	if r.logEvery > 0 && s.Tick%r.logEvery == 0 {
		r.logger.Infof("run=%s backend=%s tick=%d agents=%d speed=%.3f±%.3f dist=%.3f (p90 %.3f) outside=%d tick=%dus",
			stats.RunID, stats.Backend, stats.Tick, stats.Agents, stats.SpeedMean, stats.SpeedStd,
			stats.DistanceMean, stats.DistanceP90, stats.Outside, stats.TickMicros)
	}
	if err := r.out.Write(stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// Last returns the statistics of the last observed tick.
func (r *Recorder) Last() TickStats { return r.last }

// Samples returns how many ticks were observed.
func (r *Recorder) Samples() uint64 { return r.samples }
