// Package config holds the per-connection storage configuration block.
package config

// StorageConfig configures a single named storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Backend type: "local" or "gcs".
	BucketName      string `yaml:"bucket_name"`      // Bucket for object-store backends.
	CredentialsFile string `yaml:"credentials_file"` // Service account key path for GCS.
	BaseDir         string `yaml:"base_dir"`         // Root directory for the local backend.
}

// StoragesConfig maps connection names to their configuration.
type StoragesConfig map[string]StorageConfig
