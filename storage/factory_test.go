package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/utility-registry/interfaces"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestStorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())
	dir := t.TempDir()

	backend, err := factory.StorageBackendFor(mustLocation(t, "file://"+dir))
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	backend, err = factory.StorageBackendFor(mustLocation(t, "s3://AKIA:secret@bucket/registry?region=eu-west-1&endpoint=http://localhost:9000"))
	require.NoError(t, err)
	s3b, ok := backend.(*S3Backend)
	require.True(t, ok)
	assert.Equal(t, "bucket", s3b.bucketName)
	assert.Equal(t, "registry", s3b.prefix)
	assert.NotContains(t, s3b.LocationURI(), "secret")

	backend, err = factory.StorageBackendFor(mustLocation(t, "ipfs://localhost:5001/registry?timeout=5s"))
	require.NoError(t, err)
	ipfsb, ok := backend.(*IPFSBackend)
	require.True(t, ok)
	assert.Equal(t, "/registry", ipfsb.root)
	assert.Equal(t, "5001", ipfsb.port)

	_, err = factory.StorageBackendFor(mustLocation(t, "ipfs://localhost/registry?timeout=soon"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	backend, err = factory.StorageBackendFor(mustLocation(t, "vault://vault.local:8200/secret/utility-registry?tls=false&token=root"))
	require.NoError(t, err)
	vaultb, ok := backend.(*VaultBackend)
	require.True(t, ok)
	assert.Equal(t, "secret/data/utility-registry/checkpoints/"+interfaces.ComputeID(nil).String(),
		vaultb.secretPath(interfaces.ComputeID(nil), interfaces.CheckpointType))
	assert.Equal(t, "http://vault.local:8200", vaultb.client.Address())
}

func TestNewStorageBackendLocationRejectsUnknownScheme(t *testing.T) {
	_, err := interfaces.NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestCreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger())

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "file://"+filepath.Join(t.TempDir(), "a")),
		mustLocation(t, "file://"+filepath.Join(t.TempDir(), "b")),
		{Scheme: "ftp", Raw: "ftp://nowhere"},
	})
	require.NoError(t, err)
	assert.Len(t, multi.(*MultiStorageBackend).backends, 2)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{{Scheme: "ftp"}})
	assert.Error(t, err)
}
