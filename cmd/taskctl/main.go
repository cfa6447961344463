package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-task-manager/internal/client/api"
	"go-task-manager/internal/client/guard"
	"go-task-manager/internal/client/session"
	"go-task-manager/internal/logger"
)

type clientEnv struct {
	store  *session.Store
	api    *api.Client
	guard  *guard.Guard
	closer func() error
}

type globalFlags struct {
	server      string
	sessionFile string
	logLevel    string
}

func main() {
	var flags globalFlags
	rootCmd := newRootCmd(&flags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(flags *globalFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskctl",
		Short:         "Command line client for the task manager API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "http://localhost:8080", "API base URL")
	rootCmd.PersistentFlags().StringVar(&flags.sessionFile, "session-file", "taskctl-session.db", "file holding a remembered session")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(
		loginCmd(flags),
		logoutCmd(flags),
		whoamiCmd(flags),
		refreshCmd(flags),
		openCmd(flags),
		usersCmd(flags),
		resetCmd(flags),
	)
	return rootCmd
}

// open wires the persistent bbolt cache, the in-process cache, the API
// client and the navigation guard.
func open(flags *globalFlags) (*clientEnv, error) {
	log := logger.New(os.Stderr, "pretty", flags.logLevel)
	slog.SetDefault(log)

	persistent, err := session.OpenBoltCache(flags.sessionFile)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(persistent, session.NewMemoryCache())
	return &clientEnv{
		store:  store,
		api:    api.NewClient(flags.server, store),
		guard:  guard.New(store, log),
		closer: persistent.Close,
	}, nil
}

// withEnv runs fn against a freshly opened client environment.
func withEnv(flags *globalFlags, fn func(cmd *cobra.Command, env *clientEnv, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env, err := open(flags)
		if err != nil {
			return err
		}
		defer func() {
			if err := env.closer(); err != nil {
				slog.Error("failed to close session file", "error", err)
			}
		}()

		return fn(cmd, env, args)
	}
}
