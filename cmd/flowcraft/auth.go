package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session",
	Long: `Exchange email and password for a token pair and keep it in the
configured session backend. The password is read from --password or,
when that is empty, from the first line of standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate the stored session and show its user",
	RunE:  runWhoami,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	loginCmd.Flags().StringP("password", "p", "", "account password")

	registerCmd.Flags().StringP("password", "p", "", "account password (min 8 characters)")
	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	_ = registerCmd.MarkFlagRequired("first-name")
	_ = registerCmd.MarkFlagRequired("last-name")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)
}

func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		profile, err := s.client.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		return printProfile(cmd, profile)
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		s.client.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		if !s.client.CheckSession(ctx) {
			return errors.New("not logged in")
		}
		return printProfile(cmd, s.store.User())
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	firstName, _ := cmd.Flags().GetString("first-name")
	lastName, _ := cmd.Flags().GetString("last-name")

	return withSession(cmd, func(ctx context.Context, s *session) error {
		profile, err := s.client.Register(ctx, authmodel.RegisterRequest{
			Email:     args[0],
			Password:  password,
			FirstName: firstName,
			LastName:  lastName,
		})
		if err != nil {
			return err
		}
		return printProfile(cmd, profile)
	})
}

func printProfile(cmd *cobra.Command, profile *users.Profile) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, profile)
	}
	fmt.Fprintf(out, "%s <%s>\n", profile.FullName(), profile.Email)
	fmt.Fprintf(out, "  ID:   %s\n", profile.ID)
	fmt.Fprintf(out, "  Plan: %s\n", profile.SubscriptionTier)
	return nil
}
