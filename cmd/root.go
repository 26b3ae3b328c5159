// -- cmd/root.go --

// Package cmd holds the scrapedeck command line: the interactive shell, the
// headless runner and the profile, session and history tooling.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/internal/config"
	"github.com/xkilldash9x/scrapedeck/internal/observability"
)

// fileLogging marks commands that own the terminal; their logs go to the log
// file only.
const fileLogging = "file-logging"

// app carries the state shared by the commands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "scrapedeck",
		Short:         "Scrapedeck extracts structured records from web pages with CSS selector profiles.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "scrapedeck version %s\n" .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(
		newShellCmd(a),
		newRunCmd(a),
		newValidateCmd(a),
		newSessionsCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command aborted", zap.Error(err))
	} else {
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// setup reads configuration and initializes logging before any command.
func (a *app) setup(cmd *cobra.Command) error {
	if err := initializeConfig(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "scrapedeck"})
		return err
	}
	a.cfg = cfg

	if cmd.Annotations[fileLogging] == "true" {
		observability.InitializeFileLogger(cfg.Logger())
	} else {
		observability.InitializeLogger(cfg.Logger())
	}
	a.logger = observability.GetLogger()
	a.logger.Debug("Configuration loaded", zap.String("version", Version), zap.String("config_file", a.v.ConfigFileUsed()))
	return nil
}

// initializeConfig reads in the config file and environment variables.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCRAPEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
