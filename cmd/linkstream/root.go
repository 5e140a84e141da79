package main

import (
	"fmt"
	"os"

	"github.com/Harvey-AU/linkstream/internal/config"
	"github.com/Harvey-AU/linkstream/internal/logging"
	"github.com/spf13/cobra"
)

// cliDefaultLogLevel keeps the terminal quiet unless --log-level asks for more.
const cliDefaultLogLevel = "warn"

// rootOptions carries state shared by every subcommand. It is filled in by
// the root command's PersistentPreRunE.
type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string

	config   *config.Config
	closeLog func() error
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "linkstream",
		Short: "Check every link on a website",
		Long: `linkstream crawls a single domain breadth first, checks the status of every
in-domain link it finds and prints one result per link as it goes.

Settings are read from config.yaml (--config, $XDG_CONFIG_HOME/linkstream or the
working directory), .env files and environment variables. Flags win over all of them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", cliDefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this file, rotated at 10MB")

	cmd.AddCommand(NewCrawlCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	o.config = cfg

	o.closeLog = logging.Setup(logging.Options{
		Level:   o.logLevel,
		Env:     cfg.Env,
		Service: config.AppName,
		Out:     cmd.ErrOrStderr(),
		File:    o.logFile,
	})
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
