package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/lookout/internal/profile"
	"github.com/ayusman/lookout/internal/store"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List saved calibration profiles",
	RunE:  runProfiles,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().Int("limit", 20, "Maximum number of sessions to list")
}

// openCatalog opens the database only when it already exists.
func openCatalog() (*store.Store, error) {
	if _, err := os.Stat(cfg.DBPath()); err != nil {
		return nil, nil
	}
	return store.New(cfg.DBPath())
}

func runProfiles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	st, err := openCatalog()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		rows, err := st.Profiles().List()
		if err != nil {
			return err
		}
		active, _ := st.Settings().Get(store.SettingActiveProfile)

		fmt.Fprintln(w, "NAME\tFINGERPRINT\tRMS\tAOI\tUPDATED")
		for _, p := range rows {
			name := p.Name
			if name == active {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%d\t%s\n", name, p.Fingerprint, p.RMSError, p.AOIVertices, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}

	names, err := profile.NewStore(cfg.ProfilesDir()).List()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "NAME")
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openCatalog()
	if err != nil {
		return err
	}
	if st == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
		return nil
	}
	defer st.Close()

	rows, err := st.Sessions().List(limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tMODE\tPROFILE\tSTARTED\tDURATION\tGLANCES")
	for _, s := range rows {
		duration := "running"
		if s.EndedAt != nil {
			duration = fmt.Sprintf("%.1fs", s.TotalDurationS)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.Mode, s.ProfileName, s.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, s.OutGlances)
	}
	return nil
}
