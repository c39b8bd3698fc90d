package config

import (
	"os"
	"runtime"
	"strings"

	"github.com/drone/envsubst"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/container"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/observability"
	"github.com/ajitpratap0/parcel/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. PARCEL_WRITER_COMPRESSION
const EnvPrefix = "PARCEL"

// Config is the full parcel configuration. Every section has usable
// defaults, so an empty file is a valid configuration.
type Config struct {
	Writer  WriterConfig                `mapstructure:"writer" yaml:"writer"`
	Reader  ReaderConfig                `mapstructure:"reader" yaml:"reader"`
	Storage storage.Options             `mapstructure:"storage" yaml:"storage"`
	Log     logger.Config               `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig               `mapstructure:"metrics" yaml:"metrics"`
	Tracing observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// WriterConfig controls how containers are encoded
type WriterConfig struct {
	// RowGroupRows is the number of rows buffered before a row group is flushed
	RowGroupRows int    `mapstructure:"row_group_rows" yaml:"row_group_rows"`
	Compression  string `mapstructure:"compression" yaml:"compression"`
	Level        int    `mapstructure:"level" yaml:"level"`
	// Concurrency bounds the column chunks compressed at once
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	CreatedBy   string `mapstructure:"created_by" yaml:"created_by"`
}

// ReaderConfig controls how containers are decoded
type ReaderConfig struct {
	VerifyChecksums bool `mapstructure:"verify_checksums" yaml:"verify_checksums"`
	// Concurrency bounds the row groups verified at once
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	// TextfilePath receives a Prometheus text dump when a command finishes
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Writer: WriterConfig{
			RowGroupRows: container.DefaultRowGroupRows,
			Compression:  string(compression.Snappy),
			Level:        int(compression.Default),
			Concurrency:  runtime.GOMAXPROCS(0),
			CreatedBy:    container.DefaultCreatedBy,
		},
		Reader: ReaderConfig{
			VerifyChecksums: true,
			Concurrency:     runtime.GOMAXPROCS(0),
		},
		Storage: storage.Options{
			S3: storage.S3Options{PartSizeMB: 8, Concurrency: 4},
		},
		Log: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Validate checks the configuration for values no component would accept
func (c *Config) Validate() error {
	if c.Writer.RowGroupRows <= 0 {
		return configError("writer.row_group_rows", "must be positive")
	}
	if _, err := compression.ParseAlgorithm(c.Writer.Compression); err != nil {
		return err
	}
	if c.Writer.Level < int(compression.Fastest) || c.Writer.Level > int(compression.Best) {
		return configError("writer.level", "must be between 1 and 9")
	}
	if c.Writer.Concurrency < 0 {
		return configError("writer.concurrency", "must not be negative")
	}
	if c.Reader.Concurrency < 0 {
		return configError("reader.concurrency", "must not be negative")
	}
	if c.Storage.S3.PartSizeMB < 0 || (c.Storage.S3.PartSizeMB > 0 && c.Storage.S3.PartSizeMB < 5) {
		return configError("storage.s3.part_size_mb", "S3 multipart parts are at least 5 MB")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return configError("tracing.sampling_rate", "must be between 0 and 1")
	}
	return nil
}

// WriterOptions builds container writer options from the writer section
func (c *Config) WriterOptions(l *zap.Logger) container.WriterOptions {
	algo, _ := compression.ParseAlgorithm(c.Writer.Compression)
	return container.WriterOptions{
		RowGroupRows: c.Writer.RowGroupRows,
		Compression:  algo,
		Level:        compression.Level(c.Writer.Level),
		Concurrency:  c.Writer.Concurrency,
		CreatedBy:    c.Writer.CreatedBy,
		Logger:       l,
	}
}

// ReaderOptions builds container reader options projecting columns
func (c *Config) ReaderOptions(columns []string, l *zap.Logger) container.ReaderOptions {
	return container.ReaderOptions{
		Columns:       columns,
		SkipChecksums: !c.Reader.VerifyChecksums,
		Logger:        l,
	}
}

// StorageOptions returns the storage section with the logger attached
func (c *Config) StorageOptions(l *zap.Logger) storage.Options {
	opts := c.Storage
	opts.Logger = l
	return opts
}

// LoadOption customizes the viper instance Load reads through
type LoadOption func(v *viper.Viper) error

// BindFlag makes a command line flag override key when the flag is set
func BindFlag(key string, flag *pflag.Flag) LoadOption {
	return func(v *viper.Viper) error {
		if flag == nil {
			return errors.Newf(errors.ErrorTypeConfig, "no flag to bind to %s", key)
		}
		return v.BindPFlag(key, flag)
	}
}

// Load reads a YAML configuration through viper. Defaults fill every key the
// file leaves out, PARCEL_ prefixed environment variables override the file,
// and bound flags override everything. An empty path loads defaults, the
// environment and flags only.
func Load(path string, opts ...LoadOption) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, o := range opts {
		if err := o(v); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag")
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config").
				WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can override keys the
// file never mentions
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("writer.row_group_rows", d.Writer.RowGroupRows)
	v.SetDefault("writer.compression", d.Writer.Compression)
	v.SetDefault("writer.level", d.Writer.Level)
	v.SetDefault("writer.concurrency", d.Writer.Concurrency)
	v.SetDefault("writer.created_by", d.Writer.CreatedBy)
	v.SetDefault("reader.verify_checksums", d.Reader.VerifyChecksums)
	v.SetDefault("reader.concurrency", d.Reader.Concurrency)
	v.SetDefault("storage.overwrite", d.Storage.Overwrite)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.part_size_mb", d.Storage.S3.PartSizeMB)
	v.SetDefault("storage.s3.concurrency", d.Storage.S3.Concurrency)
	v.SetDefault("storage.gcs.credentials_file", d.Storage.GCS.CredentialsFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.output_paths", d.Log.OutputPaths)
	v.SetDefault("metrics.textfile_path", d.Metrics.TextfilePath)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.service_version", d.Tracing.ServiceVersion)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
	v.SetDefault("tracing.output_path", d.Tracing.OutputPath)
	v.SetDefault("tracing.batch_timeout", d.Tracing.BatchTimeout)
}

// LoadYAML decodes a YAML file into out after expanding ${VAR} references
// from the environment. Unlike Load it applies no defaults.
func LoadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").WithDetail("path", path)
	}
	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to expand environment references").
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").WithDetail("path", path)
	}
	return nil
}

// Save writes v as YAML
func Save(path string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").WithDetail("path", path)
	}
	return nil
}

func configError(key, msg string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, key+" "+msg).WithDetail("key", key)
}
