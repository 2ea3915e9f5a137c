// Package daemon mirrors a player's games from the rollup into a local
// store.
//
// The daemon never writes to the rollup; it follows the indexer streams and
// keeps the local database caught up, so the CLI can build moves (and their
// intended-state hashes) entirely offline.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/indexer"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/store"
)

// defaultRetryDelay paces retries after store failures.
const defaultRetryDelay = 5 * time.Second

// Daemon follows the games of one player.
type Daemon struct {
	address common.Address
	ix      indexer.Indexer

	// The store is shared by every stream goroutine; mu serializes access.
	mu    sync.Mutex
	store *store.Store

	retryDelay time.Duration
	wg         sync.WaitGroup
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithRetryDelay overrides the delay between store retries.
func WithRetryDelay(d time.Duration) Option {
	return func(d2 *Daemon) { d2.retryDelay = d }
}

// New builds a daemon mirroring the games of address.
func New(address common.Address, ix indexer.Indexer, s *store.Store, opts ...Option) *Daemon {
	d := &Daemon{
		address:    address,
		ix:         ix,
		store:      s,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run starts a move listener for every game already mirrored, then follows
// new games until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	games, err := d.store.Games(ctx, d.address, nil)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	for _, g := range games {
		d.spawnMoves(ctx, g.ID)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.listenGames(ctx)
	}()

	<-ctx.Done()
	d.wg.Wait()
	return ctx.Err()
}

func (d *Daemon) spawnMoves(ctx context.Context, id game.GameID) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.listenMoves(ctx, id)
	}()
}

// listenGames mirrors new games as they appear, picking up where the local
// store left off.
func (d *Daemon) listenGames(ctx context.Context) {
	var after *game.GameID
	for {
		d.mu.Lock()
		max, err := d.store.MaxGame(ctx)
		d.mu.Unlock()
		if err == nil {
			after = max
			break
		}
		obslog.L().Warn("load_max_game", zap.Error(err))
		if !sleep(ctx, d.retryDelay) {
			return
		}
	}

	for g := range d.ix.GamesWithUser(ctx, d.address, after) {
		obslog.L().Info("new_game",
			zap.Int32("id", int32(g.ID)),
			zap.String("white", g.White.Hex()),
			zap.String("black", g.Black.Hex()),
		)
		for {
			d.mu.Lock()
			err := d.store.InsertGame(ctx, game.New(g.ID, g.White, g.Black))
			d.mu.Unlock()
			if err == nil {
				break
			}
			obslog.L().Warn("save_game", zap.Int32("id", int32(g.ID)), zap.Error(err))
			if !sleep(ctx, d.retryDelay) {
				return
			}
		}
		d.spawnMoves(ctx, g.ID)
	}
}

// listenMoves replays new moves of one game into the local mirror. A move
// the engine rejects means the local mirror has diverged beyond repair, so
// the listener gives up on that game.
func (d *Daemon) listenMoves(ctx context.Context, id game.GameID) {
	var g *game.Game
	for {
		d.mu.Lock()
		loaded, err := d.store.Game(ctx, id)
		d.mu.Unlock()
		if err == nil {
			g = loaded
			break
		}
		obslog.L().Warn("load_game", zap.Int32("id", int32(id)), zap.Error(err))
		if !sleep(ctx, d.retryDelay) {
			return
		}
	}

	for san := range d.ix.Moves(ctx, id, g.HalfMove()+1) {
		obslog.L().Info("new_move", zap.Int32("id", int32(id)), zap.String("san", san))

		m, err := g.PlayNextMove(san)
		if err != nil {
			obslog.L().Error("invalid_mirrored_move",
				zap.Int32("id", int32(id)), zap.String("san", san), zap.Error(err))
			return
		}

		for {
			d.mu.Lock()
			err := d.store.RecordMove(ctx, id, m)
			d.mu.Unlock()
			if err == nil {
				break
			}
			obslog.L().Warn("save_move", zap.Int32("id", int32(id)), zap.Error(err))
			if !sleep(ctx, d.retryDelay) {
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
