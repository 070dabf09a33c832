package minio

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/slabmem/report"
)

// ObjectPutter is the subset of *minio.Client used by Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Sink implements report.Sink on top of a MinIO bucket.
type Sink struct {
	client      ObjectPutter
	bucket      string
	prefix      string
	compression report.Compression
}

// Option configures a Sink.
type Option func(*Sink)

// WithCompression sets the object encoding. Default: gzip.
func WithCompression(c report.Compression) Option {
	return func(s *Sink) {
		s.compression = c
	}
}

// NewSink creates a sink writing objects under prefix in bucket.
func NewSink(client ObjectPutter, bucket, prefix string, opts ...Option) *Sink {
	s := &Sink{
		client:      client,
		bucket:      bucket,
		prefix:      prefix,
		compression: report.CompressionGzip,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to endpoint with static credentials and creates a sink.
func Dial(endpoint, accessKey, secretKey string, secure bool, bucket, prefix string, opts ...Option) (*Sink, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}
	return NewSink(client, bucket, prefix, opts...), nil
}

// Key returns the object name a report called name is stored under.
func (s *Sink) Key(name string) string {
	return path.Join(s.prefix, name+s.compression.Extension())
}

// Store uploads the encoded report.
func (s *Sink) Store(ctx context.Context, name string, leaks []report.Leak) error {
	data, err := report.Encode(leaks, s.compression)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.Key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:     "text/tab-separated-values",
		ContentEncoding: s.compression.ContentEncoding(),
	})
	return err
}
