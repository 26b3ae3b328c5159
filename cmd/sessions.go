// cmd/sessions.go
package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
	"github.com/xkilldash9x/scrapedeck/internal/session"
)

// sessionCapturer opens a browser for the user to sign in and returns its
// cookies afterwards.
type sessionCapturer interface {
	CaptureSession(ctx context.Context, url string, wait time.Duration) ([]schemas.Cookie, error)
}

func newSessionsCmd(a *app) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored browser sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := session.NewDirStore(a.logger, a.cfg.Sessions().Dir)
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintf(out, "No sessions in %s\n", a.cfg.Sessions().Dir)
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(out, "%-20s %-24s %-24s %d cookies\n", s.ID, s.Name, s.Domain, len(s.Cookies))
			}
			return nil
		},
	}
	sessionsCmd.AddCommand(newSessionsCaptureCmd(a))
	return sessionsCmd
}

func newSessionsCaptureCmd(a *app) *cobra.Command {
	var (
		name string
		wait time.Duration
	)
	captureCmd := &cobra.Command{
		Use:   "capture <id> <url>",
		Short: "Open a browser, wait while you sign in, then store its cookies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, target := args[0], args[1]
			if !strings.Contains(target, "://") {
				target = "https://" + target
			}
			u, err := url.Parse(target)
			if err != nil || u.Host == "" {
				return fmt.Errorf("invalid url %q", args[1])
			}

			store, err := session.NewDirStore(a.logger, a.cfg.Sessions().Dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sign in to %s in the browser window; cookies are read in %s.\n", u.Host, wait)
			cookies, err := newCapturer(a.logger, a.cfg.Browser()).CaptureSession(cmd.Context(), target, wait)
			if err != nil {
				return fmt.Errorf("failed to capture session: %w", err)
			}

			if name == "" {
				name = id
			}
			sp := schemas.SessionProfile{ID: id, Name: name, Domain: u.Hostname(), Cookies: cookies}
			if err := store.Put(cmd.Context(), sp); err != nil {
				return err
			}
			a.logger.Info("Session stored", zap.String("id", id), zap.Int("cookies", len(cookies)))
			fmt.Fprintf(cmd.OutOrStdout(), "Stored session %s with %d cookies\n", id, len(cookies))
			return nil
		},
	}
	captureCmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the id).")
	captureCmd.Flags().DurationVar(&wait, "wait", 90*time.Second, "How long to leave the browser open.")
	return captureCmd
}
