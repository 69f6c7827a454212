package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/journal"
	"github.com/ruteri/utility-registry/storage"
)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openJournal(t *testing.T, path string) *journal.Journal {
	t.Helper()
	j, err := journal.Open(path, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func newCheckpointer(t *testing.T, dir string) *storage.Checkpointer {
	t.Helper()
	backend, err := storage.NewFileBackend(dir, discard())
	require.NoError(t, err)
	return storage.NewCheckpointer(backend, []byte("secret"), discard())
}

func TestOpenRegistryNewThenJournal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")
	cfg := registryConfig{Owner: owner, MaxSupply: 5, MetadataBase: "https://cats/"}

	j := openJournal(t, path)
	reg, err := openRegistry(ctx, cfg, j, nil, discard())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), reg.MaxSupply())
	require.NoError(t, reg.MintWithUtilityBinding(owner, alice, interfaces.NewTokenID(1), "m"))
	require.NoError(t, reg.Transfer(alice, alice, bob, interfaces.NewTokenID(1)))
	want := reg.Snapshot()
	require.NoError(t, j.Close())

	// a restart ignores the initial parameters and replays the journal
	j = openJournal(t, path)
	restored, err := openRegistry(ctx, registryConfig{Owner: bob, MaxSupply: 99}, j, nil, discard())
	require.NoError(t, err)
	assert.Equal(t, want, restored.Snapshot())
	assert.Equal(t, owner, restored.Owner())

	// and keeps journaling
	require.NoError(t, restored.Mint(owner, alice, interfaces.NewTokenID(2)))
	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, restored.Seq(), last)
}

func TestOpenRegistryRequiresOwnerWhenEmpty(t *testing.T) {
	j := openJournal(t, filepath.Join(t.TempDir(), "events.db"))
	_, err := openRegistry(context.Background(), registryConfig{MaxSupply: 5}, j, nil, discard())
	assert.ErrorIs(t, err, interfaces.ErrInvalidAccount)
}

func TestOpenRegistryFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	checkpointer := newCheckpointer(t, filepath.Join(dir, "checkpoints"))

	// build some history on the first machine and checkpoint it
	source := openJournal(t, filepath.Join(dir, "source.db"))
	reg, err := openRegistry(ctx, registryConfig{Owner: owner, MaxSupply: 10}, source, nil, discard())
	require.NoError(t, err)
	require.NoError(t, reg.Mint(owner, alice, interfaces.NewTokenID(1)))
	require.NoError(t, reg.SetAdministrator(owner, bob))
	id, seq, err := checkpointer.Save(ctx, reg)
	require.NoError(t, err)

	// restore on a fresh journal
	path := filepath.Join(dir, "fresh.db")
	fresh := openJournal(t, path)
	cfg := registryConfig{RestoreCheckpoint: id.String()}
	restored, err := openRegistry(ctx, cfg, fresh, checkpointer, discard())
	require.NoError(t, err)
	assert.Equal(t, reg.Snapshot(), restored.Snapshot())

	base, ok, err := fresh.Base(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seq, base.Seq)

	// new events land after the checkpoint
	require.NoError(t, restored.Mint(bob, bob, interfaces.NewTokenID(2)))
	want := restored.Snapshot()
	require.NoError(t, fresh.Close())

	// without the checkpoint the journal alone is not enough
	reopened := openJournal(t, path)
	_, err = openRegistry(ctx, registryConfig{}, reopened, checkpointer, discard())
	require.Error(t, err)

	// with it, the suffix is replayed on top
	again, err := openRegistry(ctx, cfg, reopened, checkpointer, discard())
	require.NoError(t, err)
	assert.Equal(t, want, again.Snapshot())
}

func TestOpenRegistryCheckpointErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	j := openJournal(t, filepath.Join(dir, "events.db"))

	_, err := openRegistry(ctx, registryConfig{RestoreCheckpoint: "00"}, j, nil, discard())
	require.Error(t, err)

	checkpointer := newCheckpointer(t, filepath.Join(dir, "checkpoints"))
	_, err = openRegistry(ctx, registryConfig{RestoreCheckpoint: "not-hex"}, j, checkpointer, discard())
	require.Error(t, err)

	missing := interfaces.ComputeID([]byte("missing")).String()
	_, err = openRegistry(ctx, registryConfig{RestoreCheckpoint: missing}, j, checkpointer, discard())
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}
