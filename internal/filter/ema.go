// Package filter smooths the predicted gaze point between frames.
package filter

import "fmt"

// EMA is a two-axis exponential moving average.
type EMA struct {
	alpha  float64
	x, y   float64
	primed bool
}

// NewEMA returns a smoother with the given weight for new observations.
// alpha must be in (0, 1].
func NewEMA(alpha float64) (*EMA, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("ema alpha %v out of range (0, 1]", alpha)
	}
	return &EMA{alpha: alpha}, nil
}

// Alpha returns the smoothing weight.
func (e *EMA) Alpha() float64 {
	return e.alpha
}

// Update feeds one observation and returns the smoothed point. The first
// observation after construction or Reset is returned unchanged.
func (e *EMA) Update(x, y float64) (float64, float64) {
	if !e.primed {
		e.x, e.y = x, y
		e.primed = true
		return x, y
	}

	e.x = e.alpha*x + (1-e.alpha)*e.x
	e.y = e.alpha*y + (1-e.alpha)*e.y
	return e.x, e.y
}

// Reset forgets the previous value.
func (e *EMA) Reset() {
	e.x, e.y = 0, 0
	e.primed = false
}
