package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/slidewright/pkg/config"
	"github.com/rhuss/slidewright/pkg/debug"
)

// commandContext carries the loaded configuration and logger to
// subcommands.
type commandContext struct {
	configPath string

	config *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "slidewright",
		Short:         "Generate slide presentations from documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			return cc.load(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Configuration file path")

	root.AddCommand(newServeCommand(cc))
	root.AddCommand(newGenerateCommand(cc))
	root.AddCommand(newMigrateCommand(cc))
	root.AddCommand(newVersionCommand())
	return root
}

// load reads the configuration and installs the logger, which writes to w.
func (c *commandContext) load(w io.Writer) error {
	cfg, err := config.Load(strings.TrimSpace(c.configPath))
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, cfg.Server.Debug, w)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	debug.Init(cfg.Logging.Debug)
	c.config = cfg
	c.logger = logger
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), "slidewright "+version+"\n")
			return err
		},
	}
}
