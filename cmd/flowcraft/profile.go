package main

import (
	"context"
	"errors"

	"github.com/jrsteele09/flowcraft-client/internal/utils"
	"github.com/jrsteele09/flowcraft-client/users"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the logged in user's profile",
	RunE:  runProfile,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change name or password",
	Long: `Update the profile of the logged in user. Only the flags given are sent.

Examples:
  flowcraft profile update --first-name Jane
  flowcraft profile update --password 'correct horse battery'`,
	RunE: runProfileUpdate,
}

func init() {
	profileUpdateCmd.Flags().String("first-name", "", "new first name")
	profileUpdateCmd.Flags().String("last-name", "", "new last name")
	profileUpdateCmd.Flags().String("password", "", "new password (min 8 characters)")

	profileCmd.AddCommand(profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		profile, err := s.client.Profile(ctx)
		if err != nil {
			return err
		}
		return printProfile(cmd, profile)
	})
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	var update users.ProfileUpdate
	for flag, field := range map[string]**string{
		"first-name": &update.FirstName,
		"last-name":  &update.LastName,
		"password":   &update.Password,
	} {
		if cmd.Flags().Changed(flag) {
			value, _ := cmd.Flags().GetString(flag)
			*field = utils.Ptr(value)
		}
	}
	if update == (users.ProfileUpdate{}) {
		return errors.New("nothing to update")
	}

	return withSession(cmd, func(ctx context.Context, s *session) error {
		profile, err := s.client.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}
		return printProfile(cmd, profile)
	})
}
