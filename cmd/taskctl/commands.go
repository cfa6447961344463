package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"go-task-manager/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loginCmd(flags *globalFlags) *cobra.Command {
	var (
		req      model.LoginRequest
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username, email or phone",
		Long: "Sign in. With --remember the session is kept in the session file and later taskctl runs reuse it.\n" +
			"Without --remember the session lives only for this process: the login is checked, any remembered\n" +
			"session is forgotten, and the next command starts signed out.",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			sess, err := env.api.Login(cmd.Context(), req, remember)
			if err != nil {
				return err
			}

			decision, err := env.guard.Navigate(cmd.Context(), "/tabs")
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s), home %s\n", sess.User.DisplayName, sess.User.Role, decision.RedirectTo)
			if !remember {
				fmt.Fprintln(cmd.OutOrStdout(), "session not saved; pass --remember to stay signed in across runs")
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "username, email or phone")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().BoolVar(&remember, "remember", false, "keep the session across runs")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			return env.api.Logout(cmd.Context())
		}),
	}
}

func whoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			user, err := env.api.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		}),
	}
}

func refreshCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the cached token for a fresh one",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			sess, err := env.api.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token valid until %s\n", sess.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		}),
	}
}

func openCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Check where navigating to a page would land",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, args []string) error {
			decision, err := env.guard.Navigate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), decision.String())
			return nil
		}),
	}
}

func usersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all accounts (admin only)",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			users, err := env.api.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		}),
	}
}

func resetCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a forgotten password",
	}

	var email, code, password string

	request := &cobra.Command{
		Use:   "request",
		Short: "E-mail a reset code",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			result, err := env.api.RequestReset(cmd.Context(), email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "if the address is registered a code was sent; it expires at %s\n", result.ExpiresAt.Format("15:04:05 MST"))
			if result.DebugCode != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "debug code: %s\n", result.DebugCode)
			}
			return nil
		}),
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check a reset code without using it",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			if err := env.api.VerifyReset(cmd.Context(), email, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "code is valid")
			return nil
		}),
	}

	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Set a new password with a reset code",
		RunE: withEnv(flags, func(cmd *cobra.Command, env *clientEnv, _ []string) error {
			err := env.api.ConfirmReset(cmd.Context(), model.ResetConsumeRequest{Email: email, Code: code, NewPassword: password})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password updated, sign in again")
			return nil
		}),
	}

	for _, sub := range []*cobra.Command{request, verify, confirm} {
		sub.Flags().StringVar(&email, "email", "", "account email")
		_ = sub.MarkFlagRequired("email")
	}
	for _, sub := range []*cobra.Command{verify, confirm} {
		sub.Flags().StringVar(&code, "code", "", "six digit reset code")
		_ = sub.MarkFlagRequired("code")
	}
	confirm.Flags().StringVar(&password, "new-password", "", "new password")
	_ = confirm.MarkFlagRequired("new-password")

	cmd.AddCommand(request, verify, confirm)
	return cmd
}
