package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		addr          string
		promptTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			runner, err := app.Runner(true)
			if err != nil {
				return err
			}
			store, err := app.Store()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = app.Config.Server.Addr()
			}

			srv := server.New(server.Deps{
				Runner:        runner,
				Store:         store,
				Tools:         app.Container().Tools(),
				Version:       Version,
				PromptTimeout: promptTimeout,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Start(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().DurationVar(&promptTimeout, "prompt-timeout", 5*time.Minute, "maximum duration of a single prompt (0 for none)")

	return cmd
}
