package harvest

import (
	"encoding/json"
	"os"

	"cmdwh/internal/common"
	"cmdwh/pkg/errors"
)

// WriteFile writes the report as indented JSON, creating parent directories.
func WriteFile(report *Report, path string) error {
	if path == "" {
		path = DefaultOutputFile
	}
	clean, err := common.CleanPath(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReportWrite, "Invalid output path").WithContext("path", path)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeReportWrite, "Failed to encode metadata report")
	}
	if err := common.EnsureParentDir(clean); err != nil {
		return errors.Wrap(err, errors.ErrCodeReportWrite, "Failed to create output directory").WithContext("path", clean)
	}
	if err := os.WriteFile(clean, append(data, '\n'), common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeReportWrite, "Failed to write metadata report").WithContext("path", clean)
	}
	return nil
}
