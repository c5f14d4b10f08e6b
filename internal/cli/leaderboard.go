package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"timed-quiz-service/internal/domain"
)

// NewLeaderboardCmd prints the ranking of submitted participants.
func NewLeaderboardCmd(configPath, apiURL *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			lb, err := newAPIClient(cfg, *apiURL, logger).Leaderboard(cmd.Context())
			if err != nil {
				return err
			}
			entries := lb.Submitted()
			if all {
				entries = lb.Entries
			}
			return printLeaderboard(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include participants who have not submitted")
	return cmd
}

func printLeaderboard(out io.Writer, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "No submissions yet.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tSTUDENT ID\tSECTION\tSCORE\tTIME")
	for _, e := range entries {
		elapsed := "-"
		if e.ElapsedSeconds >= 0 {
			elapsed = fmt.Sprintf("%ds", e.ElapsedSeconds)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%s\n", e.Rank, e.Name, e.StudentID, e.Section, e.Score, e.TotalPoints, elapsed)
	}
	return w.Flush()
}
