package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigYAMLRoundTripOmitsSecrets(t *testing.T) {
	cfg := Config{
		Warehouse: Warehouse{Backend: "snowflake", QueryTimeout: 5 * time.Minute},
		Snowflake: Snowflake{Account: "acct", Username: "loader", Database: "CMD", Schema: "RAW", Stage: "@cmgd_stage"},
		Storage:   Storage{Bucket: "gs://cmgd-data/results/cMDv4", SampleMarker: "cMDv4"},
	}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password")
	assert.NotContains(t, string(data), "credentials_file")

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, cfg, loaded)
}
