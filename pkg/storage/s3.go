package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

const (
	defaultS3PartSizeMB  = 8
	defaultS3Concurrency = 4
)

func newS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	return s3.NewFromConfig(cfg), nil
}

// S3Sink streams a container into a multipart upload. The object only
// appears once the upload completes on Commit.
type S3Sink struct {
	loc    Location
	pw     *io.PipeWriter
	cancel context.CancelFunc
	result chan error
	log    *zap.Logger
	done   bool
}

// CreateS3 starts an upload to loc
func CreateS3(ctx context.Context, loc Location, opts Options) (*S3Sink, error) {
	client, err := newS3Client(ctx, opts.S3)
	if err != nil {
		return nil, err
	}

	if !opts.Overwrite {
		_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err == nil {
			return nil, conflict(loc.String())
		}
		var nf *types.NotFound
		if !stderrors.As(err, &nf) {
			return nil, fileError(err, "failed to check for an existing object", loc.String())
		}
	}

	partSize := opts.S3.PartSizeMB
	if partSize <= 0 {
		partSize = defaultS3PartSizeMB
	}
	concurrency := opts.S3.Concurrency
	if concurrency <= 0 {
		concurrency = defaultS3Concurrency
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = int64(partSize) * 1024 * 1024
		u.Concurrency = concurrency
	})

	uctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	sink := &S3Sink{
		loc:    loc,
		pw:     pw,
		cancel: cancel,
		result: make(chan error, 1),
		log:    opts.logger().With(zap.String("location", loc.String())),
	}
	go func() {
		out, err := uploader.Upload(uctx, &s3.PutObjectInput{
			Bucket:      aws.String(loc.Bucket),
			Key:         aws.String(loc.Key),
			Body:        pr,
			ContentType: aws.String("application/vnd.parcel"),
		})
		// unblock writers if the upload failed early
		pr.CloseWithError(err)
		if err == nil {
			sink.log.Debug("container uploaded", zap.String("upload_location", out.Location))
		}
		sink.result <- err
	}()
	return sink, nil
}

func (s *S3Sink) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	return s.pw.Write(p)
}

// Commit completes the upload and waits for it
func (s *S3Sink) Commit() error {
	if s.done {
		return errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	s.done = true
	defer s.cancel()
	_ = s.pw.Close()
	if err := <-s.result; err != nil {
		return fileError(err, "failed to upload container", s.loc.String())
	}
	return nil
}

// Abort cancels the upload; the manager removes uploaded parts
func (s *S3Sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.cancel()
	_ = s.pw.CloseWithError(context.Canceled)
	<-s.result
	return nil
}

// S3Source reads a container with ranged GETs
type S3Source struct {
	ctx    context.Context
	client *s3.Client
	loc    Location
	size   int64
}

// OpenS3 looks up the object size and returns a ranged reader over it
func OpenS3(ctx context.Context, loc Location, opts Options) (*S3Source, error) {
	client, err := newS3Client(ctx, opts.S3)
	if err != nil {
		return nil, err
	}
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fileError(err, "failed to stat container object", loc.String())
	}
	return &S3Source{ctx: ctx, client: client, loc: loc, size: aws.ToInt64(head.ContentLength)}, nil
}

func (s *S3Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= s.size {
		end = s.size - 1
	}
	out, err := s.client.GetObject(s.ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.loc.Bucket),
		Key:    aws.String(s.loc.Key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		return 0, fileError(err, "failed to read container range", s.loc.String())
	}
	defer out.Body.Close()
	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the object length
func (s *S3Source) Size() int64 { return s.size }

// Close is a no-op; the client holds no per-object resources
func (s *S3Source) Close() error { return nil }
