// chesspresso-dapp is the rollup application binary. It runs inside the
// Cartesi machine, pulling inputs from the rollup host server named by
// ROLLUP_HTTP_SERVER_URL and applying them to its store.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/config"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/rollup"
	"github.com/chesspresso/chesspresso/internal/store"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		os.Stderr.WriteString("init logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer obslog.L().Sync()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		obslog.L().Fatal("dapp", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireRollupServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// State lives in the machine image, so the default is an in-memory
	// database rebuilt from inputs on replay.
	var s *store.Store
	if cfg.DatabaseURL != "" {
		s, err = store.Open(ctx, cfg.DatabaseURL)
	} else {
		s, err = store.Memory(ctx)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	obslog.L().Info("dapp_start", zap.String("server", cfg.RollupServerURL))
	return rollup.NewApp(s, rollup.NewHost(cfg.RollupServerURL)).Run(ctx)
}
