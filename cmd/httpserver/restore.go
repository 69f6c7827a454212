package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/journal"
	"github.com/ruteri/utility-registry/registry"
	"github.com/ruteri/utility-registry/storage"
)

type registryConfig struct {
	Owner        common.Address
	MaxSupply    uint64
	MetadataBase string

	// RestoreCheckpoint is the hex content id of a checkpoint to start from.
	RestoreCheckpoint string
}

// openRegistry brings the registry back to its last committed state:
//   - from a checkpoint plus the journal events after it, when asked to
//   - from the full journal, when it holds history
//   - as a new registry otherwise
func openRegistry(ctx context.Context, cfg registryConfig, j *journal.Journal, checkpointer *storage.Checkpointer, log *slog.Logger) (*registry.Registry, error) {
	opts := []registry.Option{registry.WithJournal(j), registry.WithLogger(log)}

	base, hasBase, err := j.Base(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.RestoreCheckpoint != "" {
		return restoreFromCheckpoint(ctx, cfg, j, checkpointer, log, opts)
	}
	if hasBase {
		return nil, fmt.Errorf("journal continues from checkpoint %s at seq %d; restart with it as restore-checkpoint", base.ContentID, base.Seq)
	}

	events, err := j.Load(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		log.Info("Journal is empty, creating a new registry", "owner", cfg.Owner.Hex())
		return registry.New(cfg.Owner, append(opts, registry.WithMaxSupply(cfg.MaxSupply), registry.WithMetadataBase(cfg.MetadataBase))...)
	}

	reg, err := registry.Restore(events, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore from journal: %w", err)
	}
	warnOwnerMismatch(cfg, reg, log)
	log.Info("Registry restored from journal", "seq", reg.Seq(), "totalSupply", reg.TotalSupply())
	return reg, nil
}

func restoreFromCheckpoint(ctx context.Context, cfg registryConfig, j *journal.Journal, checkpointer *storage.Checkpointer, log *slog.Logger, opts []registry.Option) (*registry.Registry, error) {
	if checkpointer == nil {
		return nil, fmt.Errorf("restoring checkpoint %s needs at least one checkpoint backend", cfg.RestoreCheckpoint)
	}
	id, err := interfaces.NewContentIDFromHex(cfg.RestoreCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint id: %w", err)
	}

	cp, err := checkpointer.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := cp.Snapshot

	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	if last < snap.Seq {
		// A fresh journal starts after the checkpoint. SetBase refuses a
		// journal that has events but falls short of it.
		if err := j.SetBase(ctx, snap.Seq, id.String()); err != nil {
			return nil, err
		}
	}

	reg, err := registry.FromSnapshot(snap, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore checkpoint %s: %w", id, err)
	}

	events, err := j.Load(ctx, snap.Seq+1)
	if err != nil {
		return nil, err
	}
	if err := reg.Replay(events); err != nil {
		return nil, fmt.Errorf("replay journal after checkpoint: %w", err)
	}

	warnOwnerMismatch(cfg, reg, log)
	log.Info("Registry restored from checkpoint",
		"contentID", id.String(),
		"checkpointSeq", snap.Seq,
		"seq", reg.Seq(),
		"totalSupply", reg.TotalSupply())
	return reg, nil
}

func warnOwnerMismatch(cfg registryConfig, reg *registry.Registry, log *slog.Logger) {
	if cfg.Owner != (common.Address{}) && cfg.Owner != reg.Owner() {
		log.Warn("Configured owner differs from restored owner, keeping restored owner",
			"configured", cfg.Owner.Hex(),
			"restored", reg.Owner().Hex())
	}
}
