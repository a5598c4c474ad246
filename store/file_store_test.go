package store

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "leads.json")
	return NewFileStore(path, log.New(io.Discard, "", 0))
}

func TestFileStoreLoadAllMissingFile(t *testing.T) {
	fs := newTestFileStore(t)

	leads, err := fs.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestFileStoreRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)

	in := []models.Lead{
		{PlaceID: "p1", Name: "Riverside Dental", Email: "hello@riverside.example", Status: models.StatusDrafted},
		{PlaceID: "p2", Name: "Oak Street Bakery", Email: "owner@oakstreet.example", Status: models.StatusApproved},
	}
	require.NoError(t, fs.SaveAll(in))

	out, err := fs.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileStoreCorruptFileTreatedAsEmpty(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs.Path), 0o755))
	require.NoError(t, os.WriteFile(fs.Path, []byte("{not json"), 0o644))

	leads, err := fs.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestFileStoreSaveAllNilWritesEmptyArray(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.SaveAll(nil))

	data, err := os.ReadFile(fs.Path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileStoreLastSaveWins(t *testing.T) {
	fs := newTestFileStore(t)
	require.NoError(t, fs.SaveAll([]models.Lead{{PlaceID: "p1", Status: models.StatusDrafted}}))
	require.NoError(t, fs.SaveAll([]models.Lead{{PlaceID: "p2", Status: models.StatusApproved}}))

	leads, err := fs.LoadAll()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "p2", leads[0].PlaceID)
}
