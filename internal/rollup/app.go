// Package rollup implements the on-chain application: a single-threaded loop
// that pulls inputs from the rollup host server, applies them to the store,
// and emits notices and reports.
//
// Determinism is the point. Every validator replays the same inputs through
// this loop, so nothing here consults a clock, randomness, or the outside
// world beyond the host server.
package rollup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
	"github.com/chesspresso/chesspresso/internal/notice"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/store"
)

// retryDelay is how long the loop waits before retrying a failed host call.
const retryDelay = time.Second

// App processes rollup requests against a store.
type App struct {
	store *store.Store
	host  *Host
}

// NewApp builds the application over its store and host client.
func NewApp(s *store.Store, host *Host) *App {
	return &App{store: s, host: host}
}

// Run drives the finish loop until ctx is canceled. The verdict for each
// request is carried into the next Finish call; rejected inputs roll back on
// the base layer, so a rejection here must leave the store untouched.
func (a *App) Run(ctx context.Context) error {
	status := message.StatusAccept
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := a.host.Finish(ctx, status)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			obslog.L().Warn("finish", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		if req == nil {
			// No pending request; poll again.
			status = message.StatusAccept
			continue
		}

		switch req.Type {
		case RequestAdvance:
			status = a.handleAdvance(ctx, req.Metadata, req.Payload)
		case RequestInspect:
			status = a.handleInspect(ctx, req.Payload)
		default:
			obslog.L().Warn("unknown_request_type", zap.String("type", string(req.Type)))
			status = message.StatusReject
		}
	}
}

func (a *App) handleAdvance(ctx context.Context, meta message.Metadata, payload []byte) message.Status {
	if err := a.advance(ctx, meta, payload); err != nil {
		obslog.L().Error("advance_rejected", zap.Error(err))
		return message.StatusReject
	}
	return message.StatusAccept
}

func (a *App) advance(ctx context.Context, meta message.Metadata, payload []byte) error {
	advance, err := message.ParseAdvance(payload)
	if err != nil {
		return err
	}

	switch m := advance.(type) {
	case message.Challenge:
		obslog.L().Info("challenge",
			zap.String("sender", meta.MsgSender.Hex()),
			zap.String("opponent", m.Opponent.Hex()),
		)
		// With a first move the challenger takes white and moves at once.
		// Without one the challenger takes black and the opponent accepts by
		// making the first move.
		white, black := meta.MsgSender, m.Opponent
		if m.FirstMove == nil {
			white, black = m.Opponent, meta.MsgSender
		}
		_, err := a.store.NewGame(ctx, white, black, m.FirstMove)
		return err

	case message.Move:
		obslog.L().Info("move", zap.Int32("id", int32(m.ID)), zap.String("san", m.SAN))
		g, err := a.store.Game(ctx, m.ID)
		if err != nil {
			return err
		}
		played, err := g.Play(meta.MsgSender, m.Hash, m.SAN)
		if err != nil {
			return err
		}
		if err := a.store.RecordMove(ctx, m.ID, played); err != nil {
			return err
		}
		if outcome := g.Outcome(); outcome != nil {
			return a.endGame(ctx, g, outcome)
		}
		return nil

	case message.Resign:
		obslog.L().Info("resign", zap.Int32("id", int32(m.ID)))
		g, err := a.store.Game(ctx, m.ID)
		if err != nil {
			return err
		}
		if g.Hash() != m.Hash {
			return fmt.Errorf("game is not in the expected state to resign: %w", game.ErrStateMismatch)
		}
		if g.Outcome() != nil {
			return fmt.Errorf("resign game %s: %w", m.ID, game.ErrTerminal)
		}
		color, ok := g.PlayerColor(meta.MsgSender)
		if !ok {
			return fmt.Errorf("resign by %s: %w", meta.MsgSender.Hex(), game.ErrInvalidPlayer)
		}
		return a.endGame(ctx, g, &game.Outcome{
			Kind:   game.OutcomeResignation,
			Winner: g.Player(color.Other()),
			Loser:  meta.MsgSender,
		})
	}
	return fmt.Errorf("unhandled advance %T", advance)
}

// endGame emits the terminal output (a Victory notice for decisive results, a
// Draw report otherwise) and then removes the game from the store.
func (a *App) endGame(ctx context.Context, g *game.Game, outcome *game.Outcome) error {
	notation, err := a.store.GameNotation(ctx, g.ID())
	if err != nil {
		return err
	}

	if winner, loser, ok := outcome.WinnerLoser(); ok {
		payload, err := notice.Victory{
			ID:       int32(g.ID()),
			Winner:   winner,
			Loser:    loser,
			Message:  outcome.String(),
			Notation: notation,
		}.Encode()
		if err != nil {
			return err
		}
		if err := a.host.SendNotice(ctx, payload); err != nil {
			return err
		}
	} else {
		payload, err := message.MarshalReport(message.Draw{
			ID:       g.ID(),
			Message:  outcome.String(),
			Notation: notation,
		})
		if err != nil {
			return err
		}
		if err := a.host.SendReport(ctx, payload); err != nil {
			return err
		}
	}

	return a.store.EndGame(ctx, g, outcome)
}

func (a *App) handleInspect(ctx context.Context, payload []byte) message.Status {
	if err := a.inspect(ctx, string(payload)); err != nil {
		obslog.L().Error("inspect_rejected", zap.Error(err))
		return message.StatusReject
	}
	return message.StatusAccept
}

// inspect serves a read-only query. The path grammar is
// games/<address>[/<after>], moves/<id>/<from>, and stats/<address>; the
// response is a single tagged report.
func (a *App) inspect(ctx context.Context, path string) error {
	segments := strings.Split(path, "/")

	var report message.Report
	switch segments[0] {
	case "games":
		if len(segments) < 2 {
			return errors.New("missing parameter address")
		}
		address, err := parseAddress(segments[1])
		if err != nil {
			return err
		}
		var after *game.GameID
		if len(segments) > 2 {
			id, err := game.ParseGameID(segments[2])
			if err != nil {
				return err
			}
			after = &id
		}
		games, err := a.store.Games(ctx, address, after)
		if err != nil {
			return err
		}
		report = message.Games{Games: games}

	case "moves":
		if len(segments) < 3 {
			return errors.New("missing parameter game ID or from")
		}
		id, err := game.ParseGameID(segments[1])
		if err != nil {
			return err
		}
		from, err := strconv.ParseUint(segments[2], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid from %q: %w", segments[2], err)
		}
		moves, err := a.store.Moves(ctx, id, uint16(from))
		if err != nil {
			return err
		}
		report = message.Moves{Moves: moves}

	case "stats":
		if len(segments) < 2 {
			return errors.New("missing parameter address")
		}
		address, err := parseAddress(segments[1])
		if err != nil {
			return err
		}
		stats, err := a.store.UserStats(ctx, address)
		if err != nil {
			return err
		}
		report = message.UserStatsReport{Stats: stats}

	default:
		return fmt.Errorf("unsupported inspect request %q", segments[0])
	}

	payload, err := message.MarshalReport(report)
	if err != nil {
		return err
	}
	return a.host.SendReport(ctx, payload)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
