package s3

import (
	"bytes"
	"context"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hupe1980/slabmem/report"
)

// Uploader is the subset of *manager.Uploader used by Sink.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Option configures a Sink.
type Option func(*Sink)

// WithCompression sets the object encoding. Default: gzip.
func WithCompression(c report.Compression) Option {
	return func(s *Sink) {
		s.compression = c
	}
}

// Sink implements report.Sink on top of an S3 bucket.
type Sink struct {
	uploader    Uploader
	bucket      string
	prefix      string
	compression report.Compression
}

// NewSink creates a sink writing objects under prefix in bucket.
func NewSink(uploader Uploader, bucket, prefix string, opts ...Option) *Sink {
	s := &Sink{
		uploader:    uploader,
		bucket:      bucket,
		prefix:      prefix,
		compression: report.CompressionGzip,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New loads the default AWS configuration and creates a sink.
func New(ctx context.Context, bucket, prefix string, opts ...Option) (*Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.Concurrency = 1
	})
	return NewSink(uploader, bucket, prefix, opts...), nil
}

// Key returns the object key a report called name is stored under.
func (s *Sink) Key(name string) string {
	return path.Join(s.prefix, name+s.compression.Extension())
}

// Store uploads the encoded report.
func (s *Sink) Store(ctx context.Context, name string, leaks []report.Leak) error {
	data, err := report.Encode(leaks, s.compression)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/tab-separated-values"),
	}
	if enc := s.compression.ContentEncoding(); enc != "" {
		input.ContentEncoding = aws.String(enc)
	}

	_, err = s.uploader.Upload(ctx, input)
	return err
}
