// Package config loads the parcel configuration.
//
// The configuration is organized into sections, one per component:
//   - Writer: row group size, compression codec and level, encode concurrency
//   - Reader: checksum verification and verify concurrency
//   - Storage: overwrite policy and S3/GCS backend settings
//   - Log, Metrics, Tracing: the ambient observability stack
//
// # Loading
//
// Load reads a YAML file through viper. Missing keys take their defaults and
// environment variables prefixed with PARCEL_ override any key, with dots
// replaced by underscores:
//
//	PARCEL_WRITER_COMPRESSION=zstd parcel write ...
//
// LoadYAML decodes an arbitrary YAML file after expanding ${VAR} references,
// which keeps secrets such as credential paths out of committed files:
//
//	storage:
//	  gcs:
//	    credentials_file: ${GOOGLE_APPLICATION_CREDENTIALS}
//
// Every loaded Config is validated before it is returned.
package config
