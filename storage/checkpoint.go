package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/utility-registry/cryptoutils"
	"github.com/ruteri/utility-registry/interfaces"
)

// CheckpointVersion is the envelope format written by Checkpointer.
const CheckpointVersion = 1

// ErrUnsupportedCheckpoint is returned for envelopes of an unknown version.
var ErrUnsupportedCheckpoint = errors.New("unsupported checkpoint version")

// SnapshotSource is anything that can produce a registry snapshot.
type SnapshotSource interface {
	Snapshot() interfaces.RegistrySnapshot
}

// Checkpoint is the stored form of a registry snapshot.
type Checkpoint struct {
	Version   int                         `json:"version"`
	CreatedAt time.Time                   `json:"created_at"`
	Snapshot  interfaces.RegistrySnapshot `json:"snapshot"`
}

// Checkpointer writes registry snapshots to a storage backend and reads
// them back. With a passphrase, checkpoints are sealed before they leave
// the process and stored as SealedCheckpointType.
type Checkpointer struct {
	backend    interfaces.StorageBackend
	passphrase []byte
	log        *slog.Logger
}

// NewCheckpointer creates a checkpointer over backend. An empty passphrase
// stores plain JSON checkpoints.
func NewCheckpointer(backend interfaces.StorageBackend, passphrase []byte, log *slog.Logger) *Checkpointer {
	if log == nil {
		log = slog.Default()
	}
	return &Checkpointer{backend: backend, passphrase: passphrase, log: log}
}

func (c *Checkpointer) contentType() interfaces.ContentType {
	if len(c.passphrase) > 0 {
		return interfaces.SealedCheckpointType
	}
	return interfaces.CheckpointType
}

// Save stores a snapshot of src and returns its content identifier together
// with the sequence number it covers.
func (c *Checkpointer) Save(ctx context.Context, src SnapshotSource) (interfaces.ContentID, uint64, error) {
	snap := src.Snapshot()
	data, err := json.Marshal(Checkpoint{
		Version:   CheckpointVersion,
		CreatedAt: time.Now().UTC(),
		Snapshot:  snap,
	})
	if err != nil {
		return interfaces.ContentID{}, 0, fmt.Errorf("encode checkpoint: %w", err)
	}

	if len(c.passphrase) > 0 {
		data, err = cryptoutils.SealWithPassphrase(c.passphrase, data)
		if err != nil {
			return interfaces.ContentID{}, 0, fmt.Errorf("seal checkpoint: %w", err)
		}
	}

	id, err := c.backend.Store(ctx, data, c.contentType())
	if err != nil {
		return interfaces.ContentID{}, 0, fmt.Errorf("store checkpoint: %w", err)
	}

	c.log.Info("Checkpoint saved",
		slog.String("contentID", id.String()),
		slog.Uint64("seq", snap.Seq),
		slog.Int("tokens", len(snap.Tokens)),
		slog.String("backend", c.backend.Name()))
	return id, snap.Seq, nil
}

// Load fetches and decodes the checkpoint stored under id.
func (c *Checkpointer) Load(ctx context.Context, id interfaces.ContentID) (*Checkpoint, error) {
	data, err := c.backend.Fetch(ctx, id, c.contentType())
	if err != nil {
		return nil, fmt.Errorf("fetch checkpoint %s: %w", id, err)
	}
	if !interfaces.ComputeID(data).Equal(id) {
		return nil, fmt.Errorf("checkpoint %s does not match its content", id)
	}

	if len(c.passphrase) > 0 {
		data, err = cryptoutils.OpenWithPassphrase(c.passphrase, data)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint: %w", err)
		}
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.Version != CheckpointVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCheckpoint, cp.Version)
	}
	return &cp, nil
}
