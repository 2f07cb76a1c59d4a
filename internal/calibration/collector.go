package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/lookout/internal/aoi"
	"github.com/ayusman/lookout/internal/log"
)

// GridPoints is the 9-point calibration grid, row-major from the top left.
var GridPoints = []aoi.Point{
	{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.9, Y: 0.1},
	{X: 0.1, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.9, Y: 0.5},
	{X: 0.1, Y: 0.9}, {X: 0.5, Y: 0.9}, {X: 0.9, Y: 0.9},
}

// Collector phases reported through Progress.
const (
	PhaseSettle  = "settle"
	PhaseDwell   = "dwell"
	PhaseDone    = "done"
	PhaseSkipped = "skipped"
)

// FeatureFunc reads the current frame. ok is false when there is no frame or
// no face; confidence is the tracker's confidence for that frame.
type FeatureFunc func() (features []float64, confidence float64, ok bool)

// Progress reports the collector's position in the grid.
type Progress struct {
	Point  int       `json:"point"`
	Total  int       `json:"total"`
	Target aoi.Point `json:"target"`
	Phase  string    `json:"phase"`
	Frames int       `json:"frames"`
}

// Collector walks the calibration targets and averages the feature vectors
// observed while the user fixates each one.
type Collector struct {
	Targets       []aoi.Point
	Settle        time.Duration
	Dwell         time.Duration
	Interval      time.Duration
	MinConfidence float64
}

// NewCollector returns a collector over GridPoints sampling at ~30 Hz.
func NewCollector(settle, dwell time.Duration, minConfidence float64) *Collector {
	return &Collector{
		Targets:       GridPoints,
		Settle:        settle,
		Dwell:         dwell,
		Interval:      33 * time.Millisecond,
		MinConfidence: minConfidence,
	}
}

// Run collects one averaged sample per target. Targets without any usable
// frame are skipped. It returns ErrInsufficientData when fewer than
// MinSamples targets produced a sample.
func (c *Collector) Run(ctx context.Context, next FeatureFunc, progress func(Progress)) ([]Sample, error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	interval := c.Interval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}

	var samples []Sample
	for i, target := range c.Targets {
		p := Progress{Point: i, Total: len(c.Targets), Target: target, Phase: PhaseSettle}
		progress(p)

		if err := sleepCtx(ctx, c.Settle); err != nil {
			return nil, err
		}

		p.Phase = PhaseDwell
		progress(p)

		acc, frames, err := c.dwell(ctx, next, interval)
		if err != nil {
			return nil, err
		}
		p.Frames = frames

		if frames == 0 {
			log.Warn("no samples collected for calibration point", "point", i, "x", target.X, "y", target.Y)
			p.Phase = PhaseSkipped
			progress(p)
			continue
		}

		samples = append(samples, Sample{Features: acc, TargetX: target.X, TargetY: target.Y})
		log.Debug("calibration point collected", "point", i, "frames", frames)

		p.Phase = PhaseDone
		progress(p)
	}

	if len(samples) < MinSamples {
		return samples, fmt.Errorf("%w: only %d calibration points collected, need %d", ErrInsufficientData, len(samples), MinSamples)
	}
	return samples, nil
}

// dwell gathers frames until the dwell deadline and returns their mean.
func (c *Collector) dwell(ctx context.Context, next FeatureFunc, interval time.Duration) ([]float64, int, error) {
	var sum []float64
	frames := 0

	take := func() error {
		features, conf, ok := next()
		if !ok || conf < c.MinConfidence || len(features) == 0 {
			return nil
		}
		if sum == nil {
			sum = make([]float64, len(features))
		}
		if len(features) != len(sum) {
			return fmt.Errorf("%w: got %d features, expected %d", ErrFeatureMismatch, len(features), len(sum))
		}
		for j, v := range features {
			sum[j] += v
		}
		frames++
		return nil
	}

	deadline := time.NewTimer(c.Dwell)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := take(); err != nil {
		return nil, 0, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-deadline.C:
			if frames == 0 {
				return nil, 0, nil
			}
			for j := range sum {
				sum[j] /= float64(frames)
			}
			return sum, frames, nil
		case <-ticker.C:
			if err := take(); err != nil {
				return nil, 0, err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
