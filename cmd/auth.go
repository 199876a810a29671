package cmd

import (
	"github.com/spf13/cobra"

	"cmdwh/internal/ui"
	"cmdwh/pkg/errors"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored Snowflake password",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the Snowflake password for the configured user",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored Snowflake password",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	authCmd.AddCommand(authLoginCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}

func snowflakeUser() (string, error) {
	if cfg.Snowflake.Username == "" {
		return "", errors.ConfigError("snowflake.username is required", "snowflake.username")
	}
	return cfg.Snowflake.Username, nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	user, err := snowflakeUser()
	if err != nil {
		return err
	}
	store, err := credentialStore()
	if err != nil {
		return err
	}

	password, err := ui.Password("Snowflake password for "+user+":", "Stored in the OS keyring, or encrypted under ~/.cmdwh/credentials")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New(errors.ErrCodeCredentialsUnavailable, "Empty password")
	}
	if err := store.Set(user, password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to store the password").
			WithContext("user", user)
	}
	ui.ShowSuccess("Password stored for " + user)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	user, err := snowflakeUser()
	if err != nil {
		return err
	}
	store, err := credentialStore()
	if err != nil {
		return err
	}
	if err := store.Delete(user); err != nil {
		return err
	}
	ui.ShowSuccess("Password removed for " + user)
	return nil
}
