// cmd/run.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/bridge"
	"github.com/xkilldash9x/scrapedeck/internal/run"
	"github.com/xkilldash9x/scrapedeck/internal/validation"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		outputDir  string
		format     string
		visible    bool
		timeout    time.Duration
		printItems bool
	)

	runCmd := &cobra.Command{
		Use:   "run <profile.json>",
		Short: "Run a saved profile headlessly and export the records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-dir") {
				a.cfg.SetEngineOutputDir(outputDir)
			}
			if cmd.Flags().Changed("timeout") {
				a.cfg.SetBrowserNavigationTimeout(timeout)
			}
			if visible {
				a.cfg.SetBrowserHeadless(false)
			}

			c, err := buildComponents(ctx, a.cfg, a.logger, bridge.NopShell{})
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer c.Shutdown()
			orc := c.Orchestrator

			if _, _, err := orc.RequestLoad(ctx, path); err != nil {
				return err
			}
			if format != "" {
				f, ok := schemas.ParseExportFormat(format)
				if !ok {
					return fmt.Errorf("unknown export format %q", format)
				}
				orc.Profile().SetExportFormat(f)
			}

			orc.Runs().OnUpdate(updatePrinter(out, printItems, a.logger))
			req, err := orc.StartRun(ctx)
			if err != nil {
				var verr *validation.ValidationError
				if errors.As(err, &verr) {
					printFieldErrors(out, orc.Profile().Current(), verr.Errors)
				}
				return err
			}
			a.logger.Info("Run dispatched", zap.String("run_id", req.RunID), zap.String("file_name", req.FileName))

			state, err := orc.Runs().Wait(ctx)
			if err != nil {
				return err
			}
			summary := orc.Runs().Summary()
			if state == schemas.RunError {
				return fmt.Errorf("run failed: %s", summary.FailureReason)
			}
			fmt.Fprintf(out, "Extracted %d records to %s\n", summary.ItemCount, summary.FileName)
			return nil
		},
	}

	runCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the export file. (Overrides config/env)")
	runCmd.Flags().StringVarP(&format, "format", "f", "", "Export format: json, csv or xlsx. (Overrides the profile)")
	runCmd.Flags().BoolVar(&visible, "visible", false, "Show the browser window.")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Navigation timeout. (Overrides config/env)")
	runCmd.Flags().BoolVar(&printItems, "print-items", false, "Print each record as a JSON line.")
	return runCmd
}

// updatePrinter streams run updates to w. Updates arrive on the controller's
// event goroutine.
func updatePrinter(w io.Writer, printItems bool, logger *zap.Logger) func(run.Update) {
	var mu sync.Mutex
	return func(u run.Update) {
		mu.Lock()
		defer mu.Unlock()
		switch u.Kind {
		case run.UpdateLog:
			if u.Log != nil {
				fmt.Fprintf(w, "[%s] %-7s %s\n", u.Log.Timestamp.Format("15:04:05"), u.Log.Level, u.Log.Text)
			}
		case run.UpdateItem:
			if !printItems {
				return
			}
			line, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(u.Item)
			if err != nil {
				logger.Warn("Failed to encode record", zap.Error(err))
				return
			}
			fmt.Fprintf(w, "%s\n", line)
		}
	}
}
