package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/utility-registry/cryptoutils"
	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/registry"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(owner, registry.WithMetadataBase("https://meta/"))
	require.NoError(t, err)
	require.NoError(t, reg.MintWithUtilityBinding(owner, alice, interfaces.NewTokenID(20), "m"))
	require.NoError(t, reg.Mint(owner, bob, interfaces.NewTokenID(21)))
	require.NoError(t, reg.Transfer(alice, alice, bob, interfaces.NewTokenID(20)))
	return reg
}

func TestCheckpointer_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir(), discardLogger())
	require.NoError(t, err)

	reg := testRegistry(t)
	cp := NewCheckpointer(backend, nil, discardLogger())

	id, seq, err := cp.Save(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, reg.Seq(), seq)

	raw, err := backend.Fetch(ctx, id, interfaces.CheckpointType)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))

	loaded, err := cp.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, CheckpointVersion, loaded.Version)
	assert.Equal(t, reg.Snapshot(), loaded.Snapshot)

	restored, err := registry.FromSnapshot(loaded.Snapshot)
	require.NoError(t, err)
	assert.False(t, restored.HasUtility(interfaces.NewTokenID(20)))
	assert.Equal(t, alice, restored.BoundAddress(interfaces.NewTokenID(20)))
	uri, err := restored.TokenURI(interfaces.NewTokenID(21))
	require.NoError(t, err)
	assert.Equal(t, "https://meta/21", uri)
}

func TestCheckpointer_Sealed(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir(), discardLogger())
	require.NoError(t, err)

	reg := testRegistry(t)
	cp := NewCheckpointer(backend, []byte("passphrase"), discardLogger())

	id, _, err := cp.Save(ctx, reg)
	require.NoError(t, err)

	raw, err := backend.Fetch(ctx, id, interfaces.SealedCheckpointType)
	require.NoError(t, err)
	assert.True(t, cryptoutils.IsSealed(raw))
	_, err = backend.Fetch(ctx, id, interfaces.CheckpointType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	loaded, err := cp.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reg.Snapshot(), loaded.Snapshot)

	wrong := NewCheckpointer(backend, []byte("other"), discardLogger())
	_, err = wrong.Load(ctx, id)
	assert.Error(t, err)
}

func TestCheckpointer_RejectsBadContent(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir(), discardLogger())
	require.NoError(t, err)
	cp := NewCheckpointer(backend, nil, discardLogger())

	_, err = cp.Load(ctx, interfaces.ComputeID([]byte("missing")))
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	id, err := backend.Store(ctx, []byte(`{"version":99}`), interfaces.CheckpointType)
	require.NoError(t, err)
	_, err = cp.Load(ctx, id)
	assert.ErrorIs(t, err, ErrUnsupportedCheckpoint)
}
