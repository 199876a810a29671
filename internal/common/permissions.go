package common

// File permission constants shared by config and report writers
const (
	// FilePermissionSecure is used for config files that may reference credentials
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for generated reports such as table_metadata.json
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for the ~/.cmdwh directory
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for report output directories
	DirPermissionNormal = 0755
)
