package debrief

import (
	"fmt"
	"strings"
)

// Markdown renders the summary as a short report.
func (s Summary) Markdown() string {
	var b strings.Builder

	b.WriteString("# Session debrief\n\n")
	fmt.Fprintf(&b, "Duration: **%.1f s** over %d samples (avg confidence %.3f)\n\n",
		s.TotalDurationS, s.TotalSamples, s.AvgConfidence)

	b.WriteString("| state | time (s) | share |\n")
	b.WriteString("|---|---:|---:|\n")
	fmt.Fprintf(&b, "| in area | %.3f | %.1f%% |\n", s.InAreaS, s.InAreaPct)
	fmt.Fprintf(&b, "| out of area | %.3f | %.1f%% |\n", s.OutOfAreaS, s.OutOfAreaPct)
	fmt.Fprintf(&b, "| unknown | %.3f | %.1f%% |\n\n", s.UnknownS, s.UnknownPct)

	b.WriteString("## Out-of-area glances\n\n")
	if s.OutGlances == 0 {
		b.WriteString("No glances away from the panel.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "- count: %d\n", s.OutGlances)
	fmt.Fprintf(&b, "- average: %.1f ms\n", s.AvgOutMs)
	fmt.Fprintf(&b, "- median: %.1f ms\n", s.MedianOutMs)
	fmt.Fprintf(&b, "- longest: %.1f ms\n", s.MaxOutMs)

	return b.String()
}
