// cmd/validate.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/persistence"
	"github.com/xkilldash9x/scrapedeck/internal/run"
	"github.com/xkilldash9x/scrapedeck/internal/validation"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile.json>",
		Short: "Check that a saved profile is ready to run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			files, err := persistence.NewFileStore(a.logger, a.cfg.Profiles().Dir, "")
			if err != nil {
				return err
			}
			res, err := files.Load(cmd.Context(), path)
			if err != nil {
				return err
			}

			if err := run.CheckRunnable(res.Profile); err != nil {
				var verr *validation.ValidationError
				if errors.As(err, &verr) {
					printFieldErrors(out, res.Profile, verr.Errors)
				}
				return err
			}
			fmt.Fprintf(out, "%s: ready to run (%d extractors, %s export)\n",
				res.Path, len(res.Profile.Extractors), res.Profile.ExportFormat)
			return nil
		},
	}
}

// printFieldErrors lists every extractor with a missing field.
func printFieldErrors(w io.Writer, p schemas.Profile, errs validation.ErrorSet) {
	for i, e := range p.Extractors {
		fe := errs.For(e.ID)
		if !fe.Any() {
			continue
		}
		name := e.FieldName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "extractor %d %s:", i+1, name)
		if fe.FieldNameMissing {
			fmt.Fprint(w, " field name missing;")
		}
		if fe.SelectorMissing {
			fmt.Fprint(w, " selector missing;")
		}
		if fe.AttributeNameMissing {
			fmt.Fprint(w, " attribute name missing;")
		}
		fmt.Fprintln(w)
	}
}
