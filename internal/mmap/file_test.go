package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestFile(t *testing.T) {
	content := []byte("CBIRSNAP payload")
	f, err := Open(snapshotFile(t, content))
	require.NoError(t, err)

	assert.Equal(t, len(content), f.Len())
	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Equal(t, content, data)

	t.Run("ReadAt", func(t *testing.T) {
		buf := make([]byte, 7)
		n, err := f.ReadAt(buf, 9)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(buf[:n]))

		n, err = f.ReadAt(make([]byte, 10), 12)
		assert.Equal(t, 4, n)
		assert.Equal(t, io.EOF, err)

		_, err = f.ReadAt(buf, int64(len(content)))
		assert.Equal(t, io.EOF, err)

		_, err = f.ReadAt(buf, -1)
		assert.Error(t, err)
	})

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, len(content), f.Len())
	_, err = f.Bytes()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFile_Empty(t *testing.T) {
	f, err := Open(snapshotFile(t, nil))
	require.NoError(t, err)
	defer f.Close()

	assert.Zero(t, f.Len())
	data, err := f.Bytes()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFile_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
