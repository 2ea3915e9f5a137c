// chesspressod is the client daemon. It follows one player's games through a
// rollup node's inspect API and mirrors them into a local sqlite database,
// which the chesspresso CLI reads to build moves offline.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/config"
	"github.com/chesspresso/chesspresso/internal/daemon"
	"github.com/chesspresso/chesspresso/internal/indexer"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/store"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		os.Stderr.WriteString("init logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer obslog.L().Sync()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		obslog.L().Fatal("daemon", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Address) {
		return errors.New("CHESSPRESSO_ADDRESS is required")
	}
	address := common.HexToAddress(cfg.Address)

	dbPath, err := cfg.LocalDBPath(address.Hex())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	obslog.L().Info("daemon_start",
		zap.String("address", address.Hex()),
		zap.String("db", dbPath),
		zap.String("node", cfg.NodeURL),
	)
	ix := indexer.NewInspectIndexer(cfg.NodeURL)
	return daemon.New(address, ix, s).Run(ctx)
}
