package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/challenge"
	"timed-quiz-service/internal/client"
	"timed-quiz-service/internal/domain"
)

// NewAdminCmd groups the admin operations that run against a live backend.
func NewAdminCmd(configPath, apiURL *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage questions, participants and registration",
	}

	withClient := func(run func(cmd *cobra.Command, args []string, api *client.Client, logger *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return run(cmd, args, newAPIClient(cfg, *apiURL, logger), logger)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed",
			Short: "Load the built-in question set",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, _ []string, api *client.Client, logger *zap.Logger) error {
				result, err := api.Batch(cmd.Context(), app.BatchRequest{Action: app.BatchSeed})
				if err != nil {
					return err
				}
				created := 0
				if result.Created != nil {
					created = *result.Created
				}
				logger.Info("questions seeded", zap.Int("created", created))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear-participants",
			Short: "Delete every participant",
			Args:  cobra.NoArgs,
			RunE: withClient(func(cmd *cobra.Command, _ []string, api *client.Client, logger *zap.Logger) error {
				deleted, err := api.DeleteAllParticipants(cmd.Context())
				if err != nil {
					return err
				}
				logger.Info("participants cleared", zap.Int("deleted", deleted))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set-active true|false",
			Short: "Open or close registrations",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(cmd *cobra.Command, args []string, api *client.Client, logger *zap.Logger) error {
				active, err := strconv.ParseBool(args[0])
				if err != nil {
					return fmt.Errorf("set-active: %w", err)
				}
				if err := api.PutSettings(cmd.Context(), app.ConfigSettingsKey, map[string]any{"isQuizActive": active}); err != nil {
					return err
				}
				logger.Info("registration updated", zap.Bool("active", active))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "renumber [section]",
			Short: "Rewrite question order as 1..N within each section",
			Args:  cobra.MaximumNArgs(1),
			RunE: withClient(func(cmd *cobra.Command, args []string, api *client.Client, logger *zap.Logger) error {
				sections := domain.Sections
				if len(args) == 1 {
					section, err := domain.ParseSection(args[0])
					if err != nil {
						return err
					}
					sections = []domain.Section{section}
				}
				questions, err := api.ListQuestions(cmd.Context())
				if err != nil {
					return err
				}
				updates := renumberUpdates(questions, sections)
				if len(updates) == 0 {
					logger.Info("nothing to renumber")
					return nil
				}
				if _, err := api.Batch(cmd.Context(), app.BatchRequest{Action: app.BatchRenumber, Updates: updates}); err != nil {
					return err
				}
				logger.Info("questions renumbered", zap.Int("updated", len(updates)))
				return nil
			}),
		},
		exportCSVCmd(withClient),
	)
	return cmd
}

func exportCSVCmd(withClient func(func(*cobra.Command, []string, *client.Client, *zap.Logger) error) func(*cobra.Command, []string) error) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-csv",
		Short: "Download the leaderboard as CSV",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, _ []string, api *client.Client, logger *zap.Logger) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := api.ExportCSV(cmd.Context(), w); err != nil {
				return err
			}
			if output != "" && output != "-" {
				logger.Info("leaderboard exported", zap.String("path", output))
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")
	return cmd
}

// renumberUpdates computes the order rewrite for every question whose order changes.
func renumberUpdates(questions []domain.Question, sections []domain.Section) []app.OrderUpdate {
	var updates []app.OrderUpdate
	for _, section := range sections {
		var inSection []domain.Question
		for _, q := range questions {
			if q.Section == section {
				inSection = append(inSection, q)
			}
		}
		renumbered := challenge.Renumber(inSection)
		for _, q := range renumbered {
			for _, original := range inSection {
				if original.ID == q.ID && original.Order != q.Order {
					updates = append(updates, app.OrderUpdate{ID: q.ID, Order: q.Order})
				}
			}
		}
	}
	return updates
}
