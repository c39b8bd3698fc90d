// Package storage resolves container locations to sinks and sources.
//
// A location is a local path, an s3://bucket/key URL or a gs://bucket/object
// URL. Sinks stage their output and only make it visible on Commit, so an
// aborted write never leaves a partial container where a reader would find
// it. Sources provide the random access a container footer needs.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
)

// Sink receives one container. Exactly one of Commit or Abort ends it.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// Source is random access to one stored container
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Scheme identifies a storage backend
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
)

// Location is a parsed container address
type Location struct {
	Scheme Scheme
	// Bucket is empty for local paths
	Bucket string
	// Key is the object key, or the file path for local locations
	Key string
}

func (l Location) String() string {
	if l.Scheme == SchemeLocal {
		return l.Key
	}
	return string(l.Scheme) + "://" + l.Bucket + "/" + l.Key
}

// ParseLocation splits a location string into its backend and address
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New(errors.ErrorTypeConfig, "empty location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Scheme: SchemeLocal, Key: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid location").WithDetail("location", raw)
	}
	switch Scheme(u.Scheme) {
	case SchemeLocal:
		return Location{Scheme: SchemeLocal, Key: u.Path}, nil
	case SchemeS3, SchemeGCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, errors.New(errors.ErrorTypeConfig, "location needs a bucket and a key").
				WithDetail("location", raw)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported location scheme %q", u.Scheme).
			WithDetail("location", raw)
	}
}

// S3Options configures the S3 backend
type S3Options struct {
	Region      string `mapstructure:"region" yaml:"region"`
	PartSizeMB  int    `mapstructure:"part_size_mb" yaml:"part_size_mb"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// GCSOptions configures the GCS backend
type GCSOptions struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// Options configures every backend
type Options struct {
	// Overwrite allows a sink to replace an existing container
	Overwrite bool        `mapstructure:"overwrite" yaml:"overwrite"`
	S3        S3Options   `mapstructure:"s3" yaml:"s3"`
	GCS       GCSOptions  `mapstructure:"gcs" yaml:"gcs"`
	Logger    *zap.Logger `mapstructure:"-" yaml:"-"`
}

func (o *Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Get()
}

// Create opens a sink for the container at location
func Create(ctx context.Context, location string, opts Options) (Sink, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case SchemeS3:
		return CreateS3(ctx, loc, opts)
	case SchemeGCS:
		return CreateGCS(ctx, loc, opts)
	default:
		return CreateLocal(loc.Key, opts.Overwrite)
	}
}

// Open opens the container at location for reading
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case SchemeS3:
		return OpenS3(ctx, loc, opts)
	case SchemeGCS:
		return OpenGCS(ctx, loc, opts)
	default:
		return OpenLocal(loc.Key)
	}
}

func conflict(loc string) *errors.Error {
	return errors.New(errors.ErrorTypeConflict, "container already exists, enable overwrite to replace it").
		WithDetail("location", loc)
}

func fileError(err error, msg, loc string) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeFile, msg).WithDetail("location", loc)
}
