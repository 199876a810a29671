package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cmdwh/internal/config"
	"cmdwh/internal/ui"
	"cmdwh/pkg/errors"
)

var (
	interactiveInit bool
	forceInit       bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the cmdwh configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long: `Write a configuration file with the production defaults, or walk
through the settings with --interactive. A Snowflake password entered in
the wizard goes to the credential store, never to the file.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := *cfg
		if out.Snowflake.Password != "" {
			out.Snowflake.Password = "********"
		}
		data, err := yaml.Marshal(&out)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode configuration")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", config.GetConfigFile(), data)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&interactiveInit, "interactive", "i", false, "prompt for every setting")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.GetConfigFile()
	if cfgFile != "" {
		path = cfgFile
	}

	if config.Exists() && cfgFile == "" && !forceInit {
		if !interactiveInit {
			return errors.New(errors.ErrCodeConfigInvalid, "Configuration already exists").
				WithContext("file", path).
				WithSuggestions("Use --force to overwrite it", "Or edit the file directly")
		}
		overwrite, err := ui.Confirm("Configuration already exists. Overwrite it?", false)
		if err != nil {
			return err
		}
		if !overwrite {
			ui.ShowInfo("Setup cancelled")
			return nil
		}
	}

	c := config.Defaults()
	var password string
	if interactiveInit {
		edited, secret, err := ui.NewConfigWizard().Run(c)
		if err != nil {
			return err
		}
		c, password = *edited, secret
	}
	if err := config.Validate(&c); err != nil {
		return err
	}

	if err := config.Save(&c, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to save configuration").
			WithContext("file", path)
	}
	ui.ShowSuccess("Configuration saved to " + path)

	if password != "" {
		store, err := credentialStore()
		if err != nil {
			return err
		}
		if err := store.Set(c.Snowflake.Username, password); err != nil {
			return errors.Wrap(err, errors.ErrCodeCredentialsUnavailable, "Failed to store the Snowflake password")
		}
		ui.ShowSuccess("Password stored for " + c.Snowflake.Username)
	}

	fmt.Fprintln(ui.Output)
	ui.ShowInfo("Run 'cmdwh pipeline' to build every tier")
	return nil
}
