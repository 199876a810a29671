package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cmdwh/internal/config"
	"cmdwh/internal/logging"
	"cmdwh/internal/ui"
	"cmdwh/pkg/errors"
	"cmdwh/pkg/models"
)

var (
	cfgFile   string
	backend   string
	project   string
	dataset   string
	strict    bool
	logLevel  string
	logFormat string
	noColor   bool

	cfg    *models.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "cmdwh",
		Short: "Build the curatedMetagenomicData warehouse tables",
		Long: `cmdwh provisions the three-tier curatedMetagenomicData warehouse.

  external   ext_ tables over the gzip TSV files in the bucket
  stage      src_ views with sample_id and clustered stg_ tables
  harvest    a JSON metadata report of every object in the dataset
  pipeline   all three, in order`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Close()
		},
	}
)

// skipConfig lists commands that run without a loaded configuration.
var skipConfig = map[string]bool{
	"version":    true,
	"init":       true,
	"help":       true,
	"completion": true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var shown shownError
		if !errors.As(err, &shown) {
			ui.ShowError(err)
		}
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $HOME/.cmdwh/config.yaml)")
	flags.StringVar(&backend, "backend", "", "warehouse backend: bigquery or snowflake")
	flags.StringVar(&project, "project", "", "target project (Snowflake database)")
	flags.StringVar(&dataset, "dataset", "", "target dataset (Snowflake schema)")
	flags.BoolVar(&strict, "strict", false, "exit non-zero when any object fails")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: auto, console, json")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
}

func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		ui.SetColor(false)
	}
	if skipConfig[cmd.Name()] {
		return nil
	}

	v := viper.New()
	if backend != "" {
		v.Set("warehouse.backend", backend)
	}
	if logLevel != "" {
		v.Set("log.level", logLevel)
	}
	if logFormat != "" {
		v.Set("log.format", logFormat)
	}

	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	applyNamespaceFlags(loaded)
	if err := config.Validate(loaded); err != nil {
		return err
	}
	cfg = loaded

	logger, err = logging.Init(logging.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Service: "cmdwh",
		Version: Version,
	})
	if err != nil {
		return err
	}

	proj, ds := config.Namespace(cfg)
	l := logger.With().
		Str("command", cmd.Name()).
		Str("backend", cfg.Warehouse.Backend).
		Str("namespace", proj+"."+ds).
		Logger()
	cmd.SetContext(l.WithContext(cmd.Context()))
	zerolog.Ctx(cmd.Context()).Debug().Str("config", config.GetConfigFile()).Msg("Configuration loaded")
	return nil
}

// applyNamespaceFlags maps --project/--dataset onto the active backend.
func applyNamespaceFlags(c *models.Config) {
	if c.Warehouse.Backend == "snowflake" {
		if project != "" {
			c.Snowflake.Database = project
		}
		if dataset != "" {
			c.Snowflake.Schema = dataset
		}
		return
	}
	if project != "" {
		c.BigQuery.Project = project
	}
	if dataset != "" {
		c.BigQuery.Dataset = dataset
	}
}
