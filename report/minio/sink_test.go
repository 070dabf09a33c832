package minio

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabmem/report"
)

type MockPutter struct {
	mock.Mock
}

func (m *MockPutter) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	args := m.Called(bucket, object, data, size, opts.ContentEncoding)
	return minio.UploadInfo{Size: size}, args.Error(0)
}

var leaks = []report.Leak{
	{Address: 0x2000, Size: 100, File: "b.go", Function: "pkg.F", Line: 9, Kind: "heap-alloc"},
}

func TestSink_Store(t *testing.T) {
	m := new(MockPutter)
	sink := NewSink(m, "diagnostics", "leaks/", WithCompression(report.CompressionNone))

	want, err := report.Encode(leaks, report.CompressionNone)
	require.NoError(t, err)

	m.On("PutObject", "diagnostics", "leaks/run.tsv", want, int64(len(want)), "").Return(nil).Once()

	require.NoError(t, sink.Store(context.Background(), "run.tsv", leaks))
	m.AssertExpectations(t)
}

func TestSink_StoreError(t *testing.T) {
	m := new(MockPutter)
	sink := NewSink(m, "diagnostics", "")

	boom := errors.New("bucket missing")
	m.On("PutObject", "diagnostics", "run.tsv.gz", mock.Anything, mock.Anything, "gzip").Return(boom).Once()

	assert.ErrorIs(t, sink.Store(context.Background(), "run.tsv", leaks), boom)
}

func TestDial(t *testing.T) {
	sink, err := Dial("localhost:9000", "access", "secret", false, "diagnostics", "leaks")
	require.NoError(t, err)
	assert.Equal(t, "leaks/x.tsv.gz", sink.Key("x.tsv"))
}
