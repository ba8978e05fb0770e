package blob

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	return s
}

func TestFileStore_WriteReadSize(t *testing.T) {
	s := createTestFileStore(t)
	k := Key{Context: "1", Entry: "7"}

	n, err := s.Write(k, []byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := s.Read(k)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	size, ok, err := s.Size(k)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), size)

	// payload lives at <dir>/<context>/<entry>
	_, err = os.Stat(filepath.Join(s.Dir, "1", "7"))
	assert.NoError(t, err)
}

func TestFileStore_OverwriteLeavesNoTempFiles(t *testing.T) {
	s := createTestFileStore(t)
	k := Key{Context: "1", Entry: "7"}

	_, err := s.Write(k, []byte("first"))
	require.NoError(t, err)
	_, err = s.Write(k, []byte("second"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.Dir, "1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].Name())
}

func TestFileStore_Missing(t *testing.T) {
	s := createTestFileStore(t)
	k := Key{Context: "1", Entry: "404"}

	_, err := s.Read(k)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, ok, err := s.Size(k)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Delete(k), "deleting a missing payload is not an error")
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s := createTestFileStore(t)

	for _, k := range []Key{
		{Context: "..", Entry: "x"},
		{Context: "1", Entry: "../../etc"},
		{Context: "", Entry: "x"},
	} {
		_, err := s.Write(k, []byte("x"))
		assert.Error(t, err, "key %v", k)
	}
}
