package models

import "time"

// Config is the full cmdwh configuration. Zero values are filled from the
// compiled-in production defaults by internal/config.
type Config struct {
	Warehouse Warehouse `yaml:"warehouse" mapstructure:"warehouse"`
	BigQuery  BigQuery  `yaml:"bigquery" mapstructure:"bigquery"`
	Snowflake Snowflake `yaml:"snowflake" mapstructure:"snowflake"`
	Storage   Storage   `yaml:"storage" mapstructure:"storage"`
	Registry  Registry  `yaml:"registry" mapstructure:"registry"`
	Output    Output    `yaml:"output" mapstructure:"output"`
	Log       Log       `yaml:"log" mapstructure:"log"`
}

// Warehouse selects the catalog backend.
type Warehouse struct {
	Backend      string        `yaml:"backend" mapstructure:"backend" validate:"required,oneof=bigquery snowflake"`
	QueryTimeout time.Duration `yaml:"query_timeout" mapstructure:"query_timeout" validate:"gte=0"` // 0 waits for the job indefinitely
}

type BigQuery struct {
	Project         string `yaml:"project" mapstructure:"project"`
	Dataset         string `yaml:"dataset" mapstructure:"dataset"`
	Location        string `yaml:"location" mapstructure:"location"`
	CredentialsFile string `yaml:"credentials_file,omitempty" mapstructure:"credentials_file"`
}

type Snowflake struct {
	Account   string `yaml:"account" mapstructure:"account"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password,omitempty" mapstructure:"password"`
	Role      string `yaml:"role" mapstructure:"role"`
	Warehouse string `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string `yaml:"database" mapstructure:"database"`
	Schema    string `yaml:"schema" mapstructure:"schema"`
	Stage     string `yaml:"stage" mapstructure:"stage"`         // e.g. @cmgd_stage
	StageURL  string `yaml:"stage_url" mapstructure:"stage_url"` // URL the stage points at; defaults to storage.bucket
}

// Storage describes where the raw TSV files live.
type Storage struct {
	Bucket       string `yaml:"bucket" mapstructure:"bucket" validate:"required"`
	SampleMarker string `yaml:"sample_marker" mapstructure:"sample_marker" validate:"required,excludesall=/"`
}

type Registry struct {
	File string `yaml:"file,omitempty" mapstructure:"file"`
}

type Output struct {
	MetadataFile string `yaml:"metadata_file" mapstructure:"metadata_file" validate:"required"`
}

type Log struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=auto console json"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}
