package cli

import (
	"github.com/spf13/cobra"

	"github.com/rajiknows/rig/internal/config"
	"github.com/rajiknows/rig/internal/dependency"
	"github.com/rajiknows/rig/internal/session"
	"github.com/rajiknows/rig/pkg/logger"
	"github.com/rajiknows/rig/storage"
)

// App is the per-invocation state shared by commands.
type App struct {
	Config     *config.Config
	ConfigPath string
	container  *dependency.Container
}

// Container returns the wired services.
func (a *App) Container() *dependency.Container { return a.container }

// Store opens the conversation store on first use.
func (a *App) Store() (*storage.Store, error) {
	return a.container.Store()
}

// Runner returns a session runner. Without persist it never touches the store.
func (a *App) Runner(persist bool) (*session.Runner, error) {
	if !persist {
		return session.NewRunner(a.container.Agent(), nil), nil
	}
	store, err := a.Store()
	if err != nil {
		return nil, err
	}
	return session.NewRunner(a.container.Agent(), store), nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	err := a.container.Close()
	if cerr := logger.Close(); err == nil {
		err = cerr
	}
	return err
}

func getApp(cmd *cobra.Command) *App {
	if cmd.Context() == nil {
		return nil
	}
	app, _ := cmd.Context().Value(contextKey{}).(*App)
	return app
}
