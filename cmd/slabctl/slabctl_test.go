package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabmem/report"
)

// run executes slabctl with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassesCommand(t *testing.T) {
	out, err := run(t, "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "per chunk")
	assert.Contains(t, out, "8,192")
	assert.Contains(t, out, "127")

	out, err = run(t, "classes", "--min-class-size", "16", "--chunk-size", "65536")
	require.NoError(t, err)
	assert.Contains(t, out, "16,384")

	_, err = run(t, "classes", "--min-class-size", "12")
	assert.Error(t, err)

	_, err = run(t, "classes", "--chunk-size", "4096")
	assert.Error(t, err)
}

func TestStressCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "release",
			args:        []string{"stress", "-w", "2", "-n", "500", "--max-size", "3000"},
			wantContain: []string{"mode:        release", "allocations: 1,000"},
		},
		{
			name:        "debug",
			args:        []string{"stress", "-w", "3", "-n", "400", "--max-size", "20000", "--debug"},
			wantContain: []string{"mode:        debug", "violations:  0", "leaked:      0"},
		},
		{
			name:        "oversize",
			args:        []string{"stress", "-w", "2", "-n", "50", "--max-size", "200000", "--held", "4"},
			wantContain: []string{"allocations: 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
		})
	}

	_, err := run(t, "stress", "--workers", "0")
	assert.Error(t, err)
}

func TestStressReportAndLeakCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaks.tsv")

	out, err := run(t, "stress", "-w", "2", "-n", "100", "--debug", "--leak", "2", "--report", path)
	require.NoError(t, err)
	assert.Contains(t, out, "leaked:      4")

	f, err := os.Open(path)
	require.NoError(t, err)
	leaks, err := report.ParseTSV(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	require.Len(t, leaks, 4)
	for _, l := range leaks {
		assert.Equal(t, "stress.go", l.File)
		assert.Equal(t, "leak", l.Function)
		assert.Equal(t, "new", l.Kind)
		assert.Equal(t, 64, l.Size)
	}

	out, err = run(t, "leakcheck", path)
	require.NoError(t, err)
	assert.Contains(t, out, "4 leaks, 256 bytes, 2 sites")
	assert.Contains(t, out, "stress.go:1")
	assert.Contains(t, out, "stress.go:2")

	_, err = run(t, "leakcheck", path, "--fail")
	assert.ErrorIs(t, err, errLeaksFound)
}

func TestStressSink(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "stress", "-w", "1", "-n", "10", "--debug", "--leak", "1",
		"--sink", "file:"+dir, "--compression", "zstd")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "slabctl-*.tsv.zst"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	out, err := run(t, "leakcheck", matches[0])
	require.NoError(t, err)
	assert.Contains(t, out, "1 leaks, 64 bytes, 1 sites")
}

func TestLeakCheckEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tsv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	out, err := run(t, "leakcheck", "--fail", path)
	require.NoError(t, err)
	assert.Contains(t, out, "no leaks")

	_, err = run(t, "leakcheck", filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func TestDetectCompression(t *testing.T) {
	tests := []struct {
		path string
		name string
		want report.Compression
	}{
		{"a.tsv", "auto", report.CompressionNone},
		{"a.tsv.gz", "auto", report.CompressionGzip},
		{"a.tsv.zst", "auto", report.CompressionZstd},
		{"a.tsv.lz4", "auto", report.CompressionLZ4},
		{"a.tsv.gz", "none", report.CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.name, func(t *testing.T) {
			got, err := detectCompression(tt.path, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := detectCompression("a.tsv", "brotli")
	assert.Error(t, err)
}

func TestOpenSink(t *testing.T) {
	ctx := context.Background()

	s, err := openSink(ctx, "file:"+t.TempDir(), "lz4")
	require.NoError(t, err)
	assert.IsType(t, &report.FileSink{}, s)

	for _, spec := range []string{
		"nowhere",
		"ftp://host/x",
		"file:",
		"s3://",
		"minio://localhost:9000",
	} {
		_, err := openSink(ctx, spec, "gzip")
		assert.Error(t, err, spec)
	}

	_, err = openSink(ctx, "file:/tmp", "brotli")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slabctl dev")
}
