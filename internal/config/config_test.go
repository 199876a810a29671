package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdwh/pkg/errors"
	"cmdwh/pkg/models"
)

// isolate points HOME and the working directory at a fresh temp dir so no
// developer config or .env leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(EnvPrefix+"_CONFIG", "")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestGetConfigFile(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, ".cmdwh", "config.yaml"), GetConfigFile())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "bigquery", cfg.Warehouse.Backend)
	assert.Equal(t, time.Duration(0), cfg.Warehouse.QueryTimeout)
	assert.Equal(t, DefaultProject, cfg.BigQuery.Project)
	assert.Equal(t, DefaultDataset, cfg.BigQuery.Dataset)
	assert.Equal(t, DefaultBucket, cfg.Storage.Bucket)
	assert.Equal(t, DefaultSampleMarker, cfg.Storage.SampleMarker)
	assert.Equal(t, DefaultMetadataFile, cfg.Output.MetadataFile)
	assert.Equal(t, DefaultBucket, cfg.Snowflake.StageURL)

	project, dataset := Namespace(cfg)
	assert.Equal(t, DefaultProject, project)
	assert.Equal(t, DefaultDataset, dataset)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, DefaultBackend, cfg.Warehouse.Backend)
	assert.Equal(t, DefaultProject, cfg.BigQuery.Project)
	assert.Equal(t, DefaultBucket, cfg.Snowflake.StageURL)
	assert.Equal(t, "@cmgd_stage", cfg.Snowflake.Stage)
	assert.NoError(t, Validate(&cfg))
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "cmdwh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
warehouse:
  backend: snowflake
  query_timeout: 10m
snowflake:
  account: acct-1
  username: loader
  warehouse: LOAD_WH
  stage: "@raw_stage"
storage:
  bucket: gs://other-bucket/results/cMDv4/
`), 0600))
	t.Setenv("CMDWH_SNOWFLAKE_SCHEMA", "STAGING")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "snowflake", cfg.Warehouse.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Warehouse.QueryTimeout)
	assert.Equal(t, "STAGING", cfg.Snowflake.Schema)
	assert.Equal(t, "gs://other-bucket/results/cMDv4", cfg.Storage.Bucket)
	assert.Equal(t, "gs://other-bucket/results/cMDv4", cfg.Snowflake.StageURL)

	project, dataset := Namespace(cfg)
	assert.Equal(t, "CURATEDMETAGENOMICDATA", project)
	assert.Equal(t, "STAGING", dataset)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(viper.New(), filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestValidate(t *testing.T) {
	valid := func() *models.Config {
		return &models.Config{
			Warehouse: models.Warehouse{Backend: "bigquery"},
			BigQuery:  models.BigQuery{Project: "p", Dataset: "d"},
			Storage:   models.Storage{Bucket: "gs://b", SampleMarker: "cMDv4"},
			Output:    models.Output{MetadataFile: "out.json"},
			Log:       models.Log{Level: "info", Format: "auto"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*models.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*models.Config) {}},
		{
			name:    "unknown backend",
			mutate:  func(c *models.Config) { c.Warehouse.Backend = "redshift" },
			wantErr: "warehouse.backend",
		},
		{
			name:    "marker with slash",
			mutate:  func(c *models.Config) { c.Storage.SampleMarker = "a/b" },
			wantErr: "storage.samplemarker",
		},
		{
			name:    "bigquery without dataset",
			mutate:  func(c *models.Config) { c.BigQuery.Dataset = "" },
			wantErr: "bigquery.dataset is required",
		},
		{
			name: "snowflake without account",
			mutate: func(c *models.Config) {
				c.Warehouse.Backend = "snowflake"
				c.Snowflake = models.Snowflake{Username: "u", Warehouse: "w", Database: "d", Schema: "s", Stage: "@st"}
			},
			wantErr: "snowflake.account is required",
		},
		{
			name: "snowflake stage without at sign",
			mutate: func(c *models.Config) {
				c.Warehouse.Backend = "snowflake"
				c.Snowflake = models.Snowflake{Account: "a", Username: "u", Warehouse: "w", Database: "d", Schema: "s", Stage: "st"}
			},
			wantErr: "must start with '@'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
		})
	}
}

func TestSaveStripsPassword(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := &models.Config{Snowflake: models.Snowflake{Username: "u", Password: "secret"}}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Snowflake.Password, "caller's config must not be mutated")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
