package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/ruteri/utility-registry/api/registryhandler"
	"github.com/ruteri/utility-registry/cmd/flags"
	"github.com/ruteri/utility-registry/httpserver"
	"github.com/ruteri/utility-registry/interfaces"
	"github.com/ruteri/utility-registry/journal"
	"github.com/ruteri/utility-registry/registry"
	"github.com/ruteri/utility-registry/storage"
)

var appFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:    "owner-address",
		Usage:   "registry owner, required when the journal is empty",
		EnvVars: []string{"REGISTRY_OWNER"},
	},
	&cli.Uint64Flag{
		Name:  "max-supply",
		Value: registry.DefaultMaxSupply,
		Usage: "initial supply cap of a new registry",
	},
	&cli.StringFlag{
		Name:  "metadata-base",
		Usage: "initial token URI prefix of a new registry",
	},
	&cli.StringFlag{
		Name:  "journal-path",
		Value: "./data/events.db",
		Usage: "SQLite event journal",
	},
	&cli.StringSliceFlag{
		Name:  "checkpoint-backend",
		Usage: "checkpoint storage URI (file://, s3://, ipfs://, vault://), repeatable",
	},
	&cli.StringFlag{
		Name:    "checkpoint-passphrase",
		Usage:   "seal checkpoints with this passphrase",
		EnvVars: []string{"REGISTRY_CHECKPOINT_PASSPHRASE"},
	},
	&cli.StringFlag{
		Name:  "restore-checkpoint",
		Usage: "content id of a checkpoint to restore before replaying the journal",
	},
	&cli.Float64Flag{
		Name:  "rate-limit",
		Value: 5,
		Usage: "mutating requests per second per caller, 0 disables",
	},
	&cli.IntFlag{
		Name:  "rate-burst",
		Value: 10,
		Usage: "per-caller request burst",
	},
	&cli.DurationFlag{
		Name:  "signature-ttl",
		Value: registryhandler.DefaultSignatureTTL,
		Usage: "how far in the future a signed request deadline may be",
	},
	flags.LogServiceFlagFn("utility-registry"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "registry-server",
		Usage:  "Serve the utility-bound collectible registry API",
		Flags:  appFlags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	ctx := cCtx.Context

	var owner common.Address
	if raw := cCtx.String("owner-address"); raw != "" {
		if !common.IsHexAddress(raw) {
			return errors.New("owner-address must be a hex address")
		}
		owner = common.HexToAddress(raw)
	}

	checkpointer, err := setupCheckpointer(cCtx, logger)
	if err != nil {
		logger.Error("Failed to configure checkpoint backends", "err", err)
		return err
	}

	j, err := journal.Open(cCtx.String("journal-path"), logger)
	if err != nil {
		logger.Error("Failed to open journal", "err", err)
		return err
	}
	defer j.Close()

	reg, err := openRegistry(ctx, registryConfig{
		Owner:             owner,
		MaxSupply:         cCtx.Uint64("max-supply"),
		MetadataBase:      cCtx.String("metadata-base"),
		RestoreCheckpoint: cCtx.String("restore-checkpoint"),
	}, j, checkpointer, logger)
	if err != nil {
		logger.Error("Failed to open registry", "err", err)
		return err
	}

	auth := registryhandler.NewAuthenticator(registryhandler.AuthConfig{
		SignatureTTL: cCtx.Duration("signature-ttl"),
		RateLimit:    rate.Limit(cCtx.Float64("rate-limit")),
		RateBurst:    cCtx.Int("rate-burst"),
	}, logger)

	// A nil *Checkpointer must not become a non-nil interface.
	var handlerCheckpointer registryhandler.Checkpointer
	if checkpointer != nil {
		handlerCheckpointer = checkpointer
	}
	handler := registryhandler.NewHandler(reg, handlerCheckpointer, auth, logger)

	server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr")), handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	events := make(chan interfaces.Event, 64)
	sub := reg.SubscribeEvents(events)
	defer sub.Unsubscribe()
	go logEvents(events, sub.Err(), logger)

	logger.Info("Starting server", "owner", reg.Owner().Hex(), "seq", reg.Seq())
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	if checkpointer != nil {
		saveFinalCheckpoint(checkpointer, reg, logger)
	}
	logger.Info("Server shutdown complete")
	return nil
}

func setupCheckpointer(cCtx *cli.Context, logger *slog.Logger) (*storage.Checkpointer, error) {
	uris := cCtx.StringSlice("checkpoint-backend")
	if len(uris) == 0 {
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}
	return storage.NewCheckpointer(backend, []byte(cCtx.String("checkpoint-passphrase")), logger), nil
}

func logEvents(events <-chan interfaces.Event, errc <-chan error, logger *slog.Logger) {
	for {
		select {
		case ev := <-events:
			logger.Debug("Registry event", "seq", ev.Seq, "kind", ev.Kind, "tokenID", ev.TokenID.String())
		case <-errc:
			return
		}
	}
}

func saveFinalCheckpoint(checkpointer *storage.Checkpointer, reg *registry.Registry, logger *slog.Logger) {
	id, seq, err := checkpointer.Save(context.Background(), reg)
	if err != nil {
		logger.Error("Final checkpoint failed", "err", err)
		return
	}
	logger.Info("Final checkpoint stored", "contentID", id.String(), "seq", seq)
}
