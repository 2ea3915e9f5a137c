// Package indexer streams rollup state to off-chain consumers.
//
// An Indexer turns the pull-style inspect API into push-style channels: the
// client daemon ranges over them and never polls on its own. Stream channels
// are closed when the context is canceled, never on transient errors.
package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
)

// Indexer exposes the rollup's queryable state.
type Indexer interface {
	// GamesWithUser streams live games in which address plays, starting
	// after the given game ID (from the beginning when after is nil). Each
	// game is delivered exactly once, in ascending ID order.
	GamesWithUser(ctx context.Context, address common.Address, after *game.GameID) <-chan message.Game

	// Moves streams the moves of game id, starting at half-move from. Each
	// move is delivered exactly once, in order.
	Moves(ctx context.Context, id game.GameID, from uint16) <-chan string

	// UserStats fetches the current stats of address.
	UserStats(ctx context.Context, address common.Address) (message.UserStats, error)
}
