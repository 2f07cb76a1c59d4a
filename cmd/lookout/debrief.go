package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
	"github.com/ayusman/lookout/internal/recorder"
)

var debriefCmd = &cobra.Command{
	Use:   "debrief <session-dir>",
	Short: "Show the attention summary of a recorded session",
	Long: `Prints the debrief of a session directory. When debrief.json is missing
the summary is recomputed from samples.csv and events.csv.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebrief,
}

func init() {
	rootCmd.AddCommand(debriefCmd)
	debriefCmd.Flags().Bool("json", false, "Print the summary as JSON")
	debriefCmd.Flags().Bool("raw", false, "Print markdown without terminal styling")
	debriefCmd.Flags().Bool("recompute", false, "Ignore debrief.json and recompute from the logs")
}

func runDebrief(cmd *cobra.Command, args []string) error {
	dir := args[0]
	asJSON, _ := cmd.Flags().GetBool("json")
	raw, _ := cmd.Flags().GetBool("raw")
	recompute, _ := cmd.Flags().GetBool("recompute")

	summary, err := loadSummary(dir, recompute)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	md := summary.Markdown()
	if raw {
		_, err := fmt.Fprint(out, md)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render debrief: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// loadSummary reads debrief.json or rebuilds the summary from the CSV logs.
func loadSummary(dir string, recompute bool) (debrief.Summary, error) {
	var summary debrief.Summary
	if !recompute {
		err := recorder.ReadJSON(filepath.Join(dir, recorder.DebriefFile), &summary)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return summary, err
		}
		log.Debug("no stored debrief, recomputing", "dir", dir)
	}

	samples, err := recorder.ReadSamples(dir)
	if err != nil {
		return summary, err
	}
	events, err := recorder.ReadEvents(dir)
	if err != nil {
		return summary, err
	}
	return debrief.Compute(samples, events, sessionDuration(dir, samples)), nil
}

func sessionDuration(dir string, samples []gaze.Sample) time.Duration {
	if meta, err := recorder.ReadMeta(dir); err == nil && meta.EndedAt != nil {
		return meta.EndedAt.Sub(meta.StartedAt)
	}
	if n := len(samples); n > 0 {
		return samples[n-1].Mono
	}
	return 0
}
