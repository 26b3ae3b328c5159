// cmd/shell.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scrapedeck/internal/shell"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "shell [profile.json]",
		Short:       "Open the interactive profile editor",
		Long:        "Opens the terminal editor. Give a profile file to open it at startup; logs go to the configured log file.",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{fileLogging: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				a.cfg.SetStartupProfile(path)
			}

			sh := shell.New()
			c, err := buildComponents(ctx, a.cfg, a.logger, sh)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer c.Shutdown()

			if err := c.Orchestrator.Startup(ctx); err != nil {
				return err
			}
			return shell.Run(ctx, c.Orchestrator, sh)
		},
	}
}
