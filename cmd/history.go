package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.Database().URL == "" {
				return errors.New("database URL is not configured (SCRAPEDECK_DATABASE_URL)")
			}
			s, closeDB, err := openStore(ctx, a.cfg.Database(), a.logger)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), historyTable(runs))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show.")
	return historyCmd
}

func historyTable(runs []schemas.RunSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "STATE", "ITEMS", "FILE", "REASON")
	for _, r := range runs {
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			string(r.State),
			strconv.Itoa(r.ItemCount),
			r.FileName,
			r.FailureReason,
		)
	}
	return t.Render()
}
