// Package debrief reduces a finished session into summary statistics.
package debrief

import (
	"math"
	"sort"
	"time"

	"github.com/ayusman/lookout/internal/gaze"
)

// TimelineStride is the sample stride of the downsampled timeline.
const TimelineStride = 3

// TimelinePoint is one entry of the downsampled replay timeline.
type TimelinePoint struct {
	T     float64    `json:"t_s"`
	X     float64    `json:"gx"`
	Y     float64    `json:"gy"`
	State gaze.State `json:"state"`
}

// Summary is the session aggregate written to debrief.json.
type Summary struct {
	TotalDurationS float64         `json:"total_duration_s"`
	InAreaS        float64         `json:"in_cockpit_s"`
	OutOfAreaS     float64         `json:"out_cockpit_s"`
	UnknownS       float64         `json:"unknown_s"`
	InAreaPct      float64         `json:"in_cockpit_pct"`
	OutOfAreaPct   float64         `json:"out_cockpit_pct"`
	UnknownPct     float64         `json:"unknown_pct"`
	OutGlances     int             `json:"n_out_glances"`
	OutDurationsMs []float64       `json:"out_durations_ms"`
	AvgOutMs       float64         `json:"avg_out_ms"`
	MedianOutMs    float64         `json:"median_out_ms"`
	MaxOutMs       float64         `json:"max_out_ms"`
	TotalSamples   int             `json:"total_samples"`
	AvgConfidence  float64         `json:"avg_confidence"`
	Timeline       []TimelinePoint `json:"timeline"`
}

// Compute builds the summary. The final open segment must already have been
// closed by the state machine so that events cover the whole session.
func Compute(samples []gaze.Sample, events []gaze.TransitionEvent, duration time.Duration) Summary {
	var perState [len(gaze.States)]float64
	outMs := make([]float64, 0)
	glances := 0

	for _, ev := range events {
		if int(ev.From) >= 0 && int(ev.From) < len(perState) {
			perState[ev.From] += ev.DurationMs() / 1000
		}
		if ev.From == gaze.OutOfArea {
			outMs = append(outMs, ev.DurationMs())
		}
		if ev.To == gaze.OutOfArea {
			glances++
		}
	}

	durS := duration.Seconds()
	denom := durS
	if denom <= 0 {
		denom = 1
	}

	in := perState[gaze.InArea]
	out := perState[gaze.OutOfArea]
	unk := perState[gaze.Unknown]

	s := Summary{
		TotalDurationS: round(durS, 3),
		InAreaS:        round(in, 3),
		OutOfAreaS:     round(out, 3),
		UnknownS:       round(unk, 3),
		InAreaPct:      round(in/denom*100, 1),
		OutOfAreaPct:   round(out/denom*100, 1),
		UnknownPct:     round(unk/denom*100, 1),
		OutGlances:     glances,
		OutDurationsMs: make([]float64, len(outMs)),
		TotalSamples:   len(samples),
		AvgConfidence:  round(avgConfidence(samples), 3),
		Timeline:       timeline(samples),
	}

	for i, d := range outMs {
		s.OutDurationsMs[i] = round(d, 1)
	}
	if len(outMs) > 0 {
		s.AvgOutMs = round(mean(outMs), 1)
		s.MedianOutMs = round(median(outMs), 1)
		s.MaxOutMs = round(maxOf(outMs), 1)
	}

	return s
}

func avgConfidence(samples []gaze.Sample) float64 {
	var sum float64
	n := 0
	for _, s := range samples {
		if s.Confidence > 0 {
			sum += s.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func timeline(samples []gaze.Sample) []TimelinePoint {
	points := make([]TimelinePoint, 0, (len(samples)+TimelineStride-1)/TimelineStride)
	if len(samples) == 0 {
		return points
	}
	t0 := samples[0].Mono
	for i := 0; i < len(samples); i += TimelineStride {
		s := samples[i]
		points = append(points, TimelinePoint{
			T:     round((s.Mono - t0).Seconds(), 3),
			X:     round(s.X, 4),
			Y:     round(s.Y, 4),
			State: s.State,
		})
	}
	return points
}

func mean(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func median(v []float64) float64 {
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(v*p) / p
}
