// Package cli implements the rig command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/internal/config"
	"github.com/rajiknows/rig/internal/dependency"
	"github.com/rajiknows/rig/pkg/logger"
)

// GlobalFlags are the flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

type contextKey struct{}

// skipInit lists commands that run without config or services.
var skipInit = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

// NewRootCmd creates the root command. opts are passed to the dependency
// container built before each command runs.
func NewRootCmd(opts ...dependency.Option) *cobra.Command {
	var flags GlobalFlags

	rootCmd := &cobra.Command{
		Use:   "rig",
		Short: "rig - multi-turn tool-calling agent",
		Long: `rig runs prompts against an LLM agent that may call tools over several
turns before answering. Conversations are stored locally and can be resumed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipInit[cmd.Name()] {
				return nil
			}
			app, err := newApp(flags, opts)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, app))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app := getApp(cmd); app != nil {
				return app.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "config file path (default ~/.rig/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "only log errors")

	rootCmd.AddCommand(NewPromptCmd())
	rootCmd.AddCommand(NewChatCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewBatchCmd())
	rootCmd.AddCommand(NewModelsCmd())
	rootCmd.AddCommand(NewToolsCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// Execute runs the root command and exits non-zero on error.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp(flags GlobalFlags, opts []dependency.Option) (*App, error) {
	configPath := flags.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Log
	if flags.Verbose {
		logCfg.Level = "debug"
	}
	if flags.Quiet {
		logCfg.Level = "error"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, err
	}

	container, err := dependency.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &App{Config: cfg, ConfigPath: configPath, container: container}, nil
}
