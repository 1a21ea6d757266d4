package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mealsync/internal/identity"
)

var (
	accountEmail    string
	accountPassword string
	accountName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your account",
	Long: `Signs in and loads the account's data. Guest data on this device is left
alone; run "mealsync sync --import-guest" to copy it into the account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Login(cmd.Context(), accountEmail, accountPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", accountEmail)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Register(cmd.Context(), accountName, accountEmail, accountPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", accountEmail)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Use mealsync without an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.ContinueAsGuest(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Continuing as guest. Your data stays on this device.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		s := application.Session
		switch s.Mode() {
		case identity.ModeAuthenticated:
			u := s.User()
			if u == nil {
				fmt.Fprintln(out, "signed in")
				break
			}
			fmt.Fprintf(out, "signed in as %s (%s)", u.Email, u.ID)
			if s.Offline() {
				fmt.Fprint(out, ", offline")
			}
			fmt.Fprintln(out)
		case identity.ModeGuest:
			fmt.Fprintln(out, "guest")
		default:
			fmt.Fprintln(out, `not signed in, run "mealsync login" or "mealsync guest"`)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&accountEmail, "email", "", "account email")
		c.Flags().StringVar(&accountPassword, "password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().StringVar(&accountName, "name", "", "display name")
}
