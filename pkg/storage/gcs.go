package storage

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

func newGCSClient(ctx context.Context, opts GCSOptions) (*storage.Client, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return client, nil
}

// GCSSink writes a container through a resumable upload. Without overwrite
// the upload carries a does-not-exist precondition.
type GCSSink struct {
	loc    Location
	client *storage.Client
	w      *storage.Writer
	cancel context.CancelFunc
	done   bool
}

// CreateGCS starts an upload to loc
func CreateGCS(ctx context.Context, loc Location, opts Options) (*GCSSink, error) {
	client, err := newGCSClient(ctx, opts.GCS)
	if err != nil {
		return nil, err
	}
	obj := client.Bucket(loc.Bucket).Object(loc.Key)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	wctx, cancel := context.WithCancel(ctx)
	w := obj.NewWriter(wctx)
	w.ContentType = "application/vnd.parcel"
	return &GCSSink{loc: loc, client: client, w: w, cancel: cancel}, nil
}

func (s *GCSSink) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	return s.w.Write(p)
}

// Commit finalizes the upload
func (s *GCSSink) Commit() error {
	if s.done {
		return errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	s.done = true
	defer s.client.Close()
	defer s.cancel()
	if err := s.w.Close(); err != nil {
		var gerr *googleapi.Error
		if stderrors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return conflict(s.loc.String())
		}
		return fileError(err, "failed to upload container", s.loc.String())
	}
	return nil
}

// Abort cancels the upload so no object is created
func (s *GCSSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cancel()
	_ = s.w.Close()
	return s.client.Close()
}

// GCSSource reads a container with range readers
type GCSSource struct {
	ctx    context.Context
	client *storage.Client
	obj    *storage.ObjectHandle
	loc    Location
	size   int64
}

// OpenGCS looks up the object size and returns a ranged reader over it
func OpenGCS(ctx context.Context, loc Location, opts Options) (*GCSSource, error) {
	client, err := newGCSClient(ctx, opts.GCS)
	if err != nil {
		return nil, err
	}
	obj := client.Bucket(loc.Bucket).Object(loc.Key)
	attrs, err := obj.Attrs(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fileError(err, "failed to stat container object", loc.String())
	}
	return &GCSSource{ctx: ctx, client: client, obj: obj, loc: loc, size: attrs.Size}, nil
}

func (s *GCSSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}
	length := int64(len(p))
	if off+length > s.size {
		length = s.size - off
	}
	r, err := s.obj.NewRangeReader(s.ctx, off, length)
	if err != nil {
		return 0, fileError(err, "failed to read container range", s.loc.String())
	}
	defer r.Close()
	n, err := io.ReadFull(r, p[:length])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the object length
func (s *GCSSource) Size() int64 { return s.size }

// Close releases the client
func (s *GCSSource) Close() error { return s.client.Close() }
