package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-task-manager/internal/app"
	"go-task-manager/internal/database"
	"go-task-manager/internal/model"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			return application.Run(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.MigrateUp), string(database.MigrateDown), string(database.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := database.MigrateUp
			if len(args) == 1 {
				command = database.MigrationCommand(args[0])
			}

			cfg, _, err := setup()
			if err != nil {
				return err
			}

			return app.Migrate(cmd.Context(), cfg, command)
		},
	}
}

func createAdminCmd() *cobra.Command {
	var req model.SignupRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Register an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			admin, err := app.CreateAdmin(cmd.Context(), cfg, log, req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", admin.Username, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "admin username")
	cmd.Flags().StringVar(&req.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "admin phone (optional)")
	cmd.Flags().StringVar(&req.Password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
