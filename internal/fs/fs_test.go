package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	lfs := LocalFS{}

	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	f, err := lfs.CreateTemp(dir, ".report-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	final := filepath.Join(dir, "report.tsv")
	require.NoError(t, lfs.Rename(f.Name(), final))
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, lfs.Remove(final))
	_, err = os.Stat(final)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		fault Fault
		op    func(f File) error
	}{
		{
			name:  "write limit",
			fault: Fault{FailAfterBytes: 4, Err: boom},
			op: func(f File) error {
				_, err := f.Write([]byte("hello"))
				return err
			},
		},
		{
			name:  "sync",
			fault: Fault{FailAfterBytes: -1, FailOnSync: true, Err: boom},
			op:    func(f File) error { return f.Sync() },
		},
		{
			name:  "close",
			fault: Fault{FailAfterBytes: -1, FailOnClose: true, Err: boom},
			op:    func(f File) error { return f.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ffs := NewFaultyFS(nil)
			ffs.AddRule(".bad-", tt.fault)

			f, err := ffs.CreateTemp(t.TempDir(), ".bad-*")
			require.NoError(t, err)
			defer f.Close()
			assert.ErrorIs(t, tt.op(f), boom)
		})
	}
}

func TestFaultyFS_DefaultError(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule(".bad-", Fault{FailAfterBytes: -1, FailOnSync: true})

	f, err := ffs.CreateTemp(t.TempDir(), ".bad-*")
	require.NoError(t, err)
	defer f.Close()
	assert.ErrorIs(t, f.Sync(), ErrInjected)
}

func TestFaultyFS_Rename(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule(".stuck-", Fault{FailAfterBytes: -1, FailOnRename: true})

	f, err := ffs.CreateTemp(dir, ".stuck-*")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, ffs.Rename(f.Name(), filepath.Join(dir, "x")), ErrInjected)

	g, err := ffs.CreateTemp(dir, ".ok-*")
	require.NoError(t, err)
	_, err = g.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, g.Close())
	assert.NoError(t, ffs.Rename(g.Name(), filepath.Join(dir, "y")))
	assert.Equal(t, int64(3), ffs.Written())

	assert.NoError(t, ffs.Remove(f.Name()))
	assert.NoError(t, ffs.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
}
