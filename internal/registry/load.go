package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cmdwh/internal/common"
	"cmdwh/pkg/errors"
)

type registryFile struct {
	Tables []TableDefinition `yaml:"tables"`
}

// LoadFile reads definitions from a YAML document of the form
//
//	tables:
//	  - name: ext_marker_abundance
//	    path: "*/metaphlan_markers/marker_abundance.tsv.gz"
//	    skip_rows: 4
//	    columns:
//	      - {name: marker_id, type: STRING}
//	      - {name: abundance, type: FLOAT, cast: FLOAT}
func LoadFile(path string) (*Registry, error) {
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid registry path: %w", err)
	}

	data, err := os.ReadFile(cleaned) // #nosec G304 - path is validated
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRegistryInvalid, "Failed to read registry file").
			WithContext("file", cleaned)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRegistryInvalid, "Failed to parse registry file").
			WithContext("file", cleaned)
	}
	return New(f.Tables)
}

// Load returns the registry at path, or the built-in one when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(Default())
	}
	return LoadFile(path)
}
