package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabmem/report"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	args := m.Called(aws.ToString(input.Bucket), aws.ToString(input.Key), aws.ToString(input.ContentEncoding), body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manager.UploadOutput), args.Error(1)
}

var leaks = []report.Leak{
	{Address: 0x1000, Size: 24, File: "a.go", Function: "main.run", Line: 7, Kind: "new"},
}

func TestSink_Store(t *testing.T) {
	up := new(MockUploader)
	sink := NewSink(up, "diagnostics", "leaks", WithCompression(report.CompressionZstd))

	var body []byte
	up.On("Upload", "diagnostics", "leaks/run.tsv.zst", "zstd", mock.Anything).
		Run(func(args mock.Arguments) { body = args.Get(3).([]byte) }).
		Return(&manager.UploadOutput{}, nil).Once()

	require.NoError(t, sink.Store(context.Background(), "run.tsv", leaks))
	up.AssertExpectations(t)

	got, err := report.Decode(bytes.NewReader(body), report.CompressionZstd)
	require.NoError(t, err)
	assert.Equal(t, leaks, got)
}

func TestSink_StoreError(t *testing.T) {
	up := new(MockUploader)
	sink := NewSink(up, "diagnostics", "")

	boom := errors.New("access denied")
	up.On("Upload", "diagnostics", "run.tsv.gz", "gzip", mock.Anything).Return(nil, boom).Once()

	err := sink.Store(context.Background(), "run.tsv", leaks)
	assert.ErrorIs(t, err, boom)
}
