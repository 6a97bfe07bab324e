package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/config"
	"github.com/gmllt/kboard/internal/logging"
)

var versionString = "dev"

// options holds the global flags.
type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "kboard",
		Short: "kboard - Kanban board server and client",
		Long: `kboard serves a Kanban board over a REST API backed by memory, S3 or
Redis, and edits it from the command line.

Board commands apply every change locally first, persist it in the
background and reconcile the result before printing the board.`,
		Version:       versionString,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newBoardCmd(opts))
	return cmd
}

// Execute runs the root command. It is called by main.main.
func Execute() error {
	return newRootCmd().Execute()
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// setup loads the configuration and builds the logger.
func (o *options) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
