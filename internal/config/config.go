package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"cmdwh/internal/common"
	"cmdwh/pkg/errors"
	"cmdwh/pkg/models"
)

// Compiled-in production values. Every stage runs with no flags against these.
const (
	EnvPrefix = "CMDWH"

	DefaultBackend      = "bigquery"
	DefaultProject      = "curatedmetagenomicdata"
	DefaultDataset      = "curatedmetagenomicsdata"
	DefaultLocation     = "US"
	DefaultBucket       = "gs://cmgd-data/results/cMDv4"
	DefaultSampleMarker = "cMDv4"
	DefaultMetadataFile = "table_metadata.json"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func GetConfigPath() string {
	if configFile := os.Getenv(EnvPrefix + "_CONFIG"); configFile != "" {
		return filepath.Dir(configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cmdwh")
}

func GetConfigFile() string {
	if configFile := os.Getenv(EnvPrefix + "_CONFIG"); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// SetDefaults registers every known key so AutomaticEnv can resolve it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("warehouse.backend", DefaultBackend)
	v.SetDefault("warehouse.query_timeout", "0s")

	v.SetDefault("bigquery.project", DefaultProject)
	v.SetDefault("bigquery.dataset", DefaultDataset)
	v.SetDefault("bigquery.location", DefaultLocation)
	v.SetDefault("bigquery.credentials_file", "")

	v.SetDefault("snowflake.account", "")
	v.SetDefault("snowflake.username", "")
	v.SetDefault("snowflake.password", "")
	v.SetDefault("snowflake.role", "")
	v.SetDefault("snowflake.warehouse", "")
	v.SetDefault("snowflake.database", strings.ToUpper(DefaultProject))
	v.SetDefault("snowflake.schema", strings.ToUpper(DefaultDataset))
	v.SetDefault("snowflake.stage", "@cmgd_stage")
	v.SetDefault("snowflake.stage_url", "")

	v.SetDefault("storage.bucket", DefaultBucket)
	v.SetDefault("storage.sample_marker", DefaultSampleMarker)

	v.SetDefault("registry.file", "")
	v.SetDefault("output.metadata_file", DefaultMetadataFile)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.file", "")
}

// Defaults returns the compiled-in configuration without reading any file or
// the environment.
func Defaults() models.Config {
	v := viper.New()
	SetDefaults(v)
	var cfg models.Config
	_ = v.Unmarshal(&cfg)
	cfg.Snowflake.StageURL = cfg.Storage.Bucket
	return cfg
}

// Load resolves the configuration: defaults, then the YAML file, then .env and
// CMDWH_* environment variables, then whatever flags the caller bound into v.
// A missing config file is only an error when explicitFile names it.
func Load(v *viper.Viper, explicitFile string) (*models.Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitFile != "" {
		cleaned, err := common.CleanPath(explicitFile)
		if err != nil {
			return nil, fmt.Errorf("invalid config file path: %w", err)
		}
		v.SetConfigFile(cleaned)
	} else if os.Getenv(EnvPrefix+"_CONFIG") != "" {
		v.SetConfigFile(GetConfigFile())
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigPath())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || (explicitFile == "" && os.IsNotExist(err))
		if !missing {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read config file").
				WithContext("file", v.ConfigFileUsed())
		}
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}

	cfg.Storage.Bucket = strings.TrimRight(cfg.Storage.Bucket, "/")
	if cfg.Snowflake.StageURL == "" {
		cfg.Snowflake.StageURL = cfg.Storage.Bucket
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the backend-specific required fields.
func Validate(cfg *models.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := strings.ToLower(verrs[0].Namespace())
			field = strings.TrimPrefix(field, "config.")
			return errors.ConfigError(
				fmt.Sprintf("Invalid configuration value for %s (%s)", field, verrs[0].Tag()), field)
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid configuration")
	}

	switch cfg.Warehouse.Backend {
	case "bigquery":
		if cfg.BigQuery.Project == "" {
			return errors.ConfigError("bigquery.project is required", "bigquery.project")
		}
		if cfg.BigQuery.Dataset == "" {
			return errors.ConfigError("bigquery.dataset is required", "bigquery.dataset")
		}
	case "snowflake":
		required := map[string]string{
			"snowflake.account":   cfg.Snowflake.Account,
			"snowflake.username":  cfg.Snowflake.Username,
			"snowflake.warehouse": cfg.Snowflake.Warehouse,
			"snowflake.database":  cfg.Snowflake.Database,
			"snowflake.schema":    cfg.Snowflake.Schema,
			"snowflake.stage":     cfg.Snowflake.Stage,
		}
		for _, key := range []string{"snowflake.account", "snowflake.username", "snowflake.warehouse",
			"snowflake.database", "snowflake.schema", "snowflake.stage"} {
			if required[key] == "" {
				return errors.ConfigError(key+" is required", key)
			}
		}
		if !strings.HasPrefix(cfg.Snowflake.Stage, "@") {
			return errors.ConfigError("snowflake.stage must start with '@'", "snowflake.stage")
		}
	}
	return nil
}

// Namespace returns the (project, dataset) pair the report is keyed by.
// For Snowflake these are the database and schema.
func Namespace(cfg *models.Config) (string, string) {
	if cfg.Warehouse.Backend == "snowflake" {
		return cfg.Snowflake.Database, cfg.Snowflake.Schema
	}
	return cfg.BigQuery.Project, cfg.BigQuery.Dataset
}

// Save writes cfg as YAML. Secrets are never persisted.
func Save(cfg *models.Config, path string) error {
	if path == "" {
		path = GetConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	out.Snowflake.Password = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
