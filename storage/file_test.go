package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/utility-registry/interfaces"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "checkpoints")

	backend, err := NewFileBackend(dir, discardLogger())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	data := []byte(`{"version":1}`)
	id, err := backend.Store(ctx, data, interfaces.CheckpointType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(data), id)

	_, err = os.Stat(filepath.Join(dir, "checkpoints", id.String()))
	require.NoError(t, err)

	fetched, err := backend.Fetch(ctx, id, interfaces.CheckpointType)
	require.NoError(t, err)
	assert.Equal(t, data, fetched)

	// Content types are separate namespaces.
	_, err = backend.Fetch(ctx, id, interfaces.SealedCheckpointType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	// Storing twice is idempotent.
	again, err := backend.Store(ctx, data, interfaces.CheckpointType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	entries, err := os.ReadDir(filepath.Join(dir, "checkpoints"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, backend.Available(ctx))
}
