package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/slabmem/report"
	miniosink "github.com/hupe1980/slabmem/report/minio"
	s3sink "github.com/hupe1980/slabmem/report/s3"
)

// openSink parses a --sink value.
//
//	file:DIR
//	s3://BUCKET[/PREFIX]
//	minio://ENDPOINT/BUCKET[/PREFIX]
//
// MinIO credentials come from MINIO_ACCESS_KEY and MINIO_SECRET_KEY;
// MINIO_INSECURE=1 disables TLS. S3 uses the default AWS credential chain.
func openSink(ctx context.Context, spec, compression string) (report.Sink, error) {
	c, err := report.ParseCompression(compression)
	if err != nil {
		return nil, err
	}

	scheme, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("sink %q: missing scheme", spec)
	}
	switch scheme {
	case "file":
		if rest == "" {
			return nil, fmt.Errorf("sink %q: missing directory", spec)
		}
		return report.NewFileSink(rest, report.WithCompression(c)), nil
	case "s3":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(rest, "//"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("sink %q: missing bucket", spec)
		}
		return s3sink.New(ctx, bucket, prefix, s3sink.WithCompression(c))
	case "minio":
		parts := strings.SplitN(strings.TrimPrefix(rest, "//"), "/", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("sink %q: want minio://ENDPOINT/BUCKET[/PREFIX]", spec)
		}
		var prefix string
		if len(parts) == 3 {
			prefix = parts[2]
		}
		return miniosink.Dial(parts[0],
			os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"),
			os.Getenv("MINIO_INSECURE") != "1",
			parts[1], prefix, miniosink.WithCompression(c))
	default:
		return nil, fmt.Errorf("sink %q: unknown scheme %q", spec, scheme)
	}
}
