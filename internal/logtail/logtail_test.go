package logtail

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadNoRedirection(t *testing.T) {
	_, err := Read("", 0, 1024, 1<<20)
	assert.ErrorIs(t, err, ErrNoRedirection)
}

func TestReadFromEndWantsMoreThanAvailable(t *testing.T) {
	path := writeTemp(t, "hello")
	r, err := Read(path, -1024, 1024, 1<<20)
	require.NoError(t, err)
	assert.Less(t, len(r.Log), 1024)
	assert.Equal(t, int64(5), r.FSize)
}

func TestReadLastByte(t *testing.T) {
	path := writeTemp(t, "hello")
	r, err := Read(path, -1, 1, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []byte("o"), r.Log)
}

func TestReadFromStart(t *testing.T) {
	path := writeTemp(t, "hello")
	r, err := Read(path, 0, 1, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), r.Log)
}

func TestReadFSizeGrows(t *testing.T) {
	path := writeTemp(t, "h")
	r1, err := Read(path, 0, 1, 1<<20)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = f.WriteString("ello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r2, err := Read(path, 0, 1, 1<<20)
	require.NoError(t, err)
	assert.Greater(t, r2.FSize, r1.FSize)
}

func TestReadClampsPositiveOffsetToFileSize(t *testing.T) {
	path := writeTemp(t, "hi")
	r, err := Read(path, 1000, 10, 1<<20)
	require.NoError(t, err)
	assert.Empty(t, r.Log)
	assert.Equal(t, int64(2), r.FSize)
}

func TestReadCapsMaxBytesToServerLimit(t *testing.T) {
	path := writeTemp(t, "0123456789")
	r, err := Read(path, 0, 100, 4)
	require.NoError(t, err)
	assert.Len(t, r.Log, 4)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.log"), 0, 10, 1<<20)
	assert.Error(t, err)
}
