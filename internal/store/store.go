// Package store persists games, moves, and per-user ratings behind a
// relational database.
//
// The rollup application owns a store exclusively and calls it sequentially;
// the client daemon shares one through a mutex. Queries therefore return
// materialized slices rather than live row cursors, so no result set ever
// outlives the lock that guarded the call.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
	"github.com/chesspresso/chesspresso/internal/obslog"
	"github.com/chesspresso/chesspresso/internal/rating"
)

// ErrNotFound is returned when a game or user row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a relational store of games, moves, and user stats.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database at url and bootstraps the schema. A
// postgres:// or postgresql:// URL selects the postgres driver; anything else
// is treated as a sqlite file path (":memory:" included).
func Open(ctx context.Context, url string) (*Store, error) {
	driver := "sqlite3"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// The store contract is sequential access; a single connection also
		// keeps ":memory:" databases coherent.
		db.SetMaxOpenConns(1)
	}

	schema := schemaSQLite
	if driver == "postgres" {
		schema = schemaPostgres
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// Memory opens an in-memory sqlite store.
func Memory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}

func (s *Store) Close() error { return s.db.Close() }

// NewGame creates a game between white and black in one transaction: both
// user rows are created if absent, the game row is inserted with a fresh id,
// and, if firstMove is set, it is validated and recorded as white's first
// ply. An illegal first move aborts the transaction, so no orphan game row
// survives a bad challenge.
func (s *Store) NewGame(ctx context.Context, white, black common.Address, firstMove *string) (*game.Game, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	unrated := rating.Unrated()
	for _, addr := range []common.Address{white, black} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(insertUserStmt),
			addr.Hex(), unrated.Value, unrated.Deviation, unrated.Volatility); err != nil {
			return nil, fmt.Errorf("ensure user %s: %w", addr.Hex(), err)
		}
	}

	id, err := s.insertGame(ctx, tx, white, black)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}

	g := game.New(id, white, black)
	if firstMove != nil {
		m, err := g.Play(white, g.Hash(), *firstMove)
		if err != nil {
			return nil, fmt.Errorf("invalid first move: %w", err)
		}
		if err := insertMove(ctx, tx, id, m); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	obslog.L().Debug("game_create",
		zap.Int32("id", int32(id)),
		zap.String("white", white.Hex()),
		zap.String("black", black.Hex()),
	)
	return g, nil
}

func (s *Store) insertGame(ctx context.Context, tx *sqlx.Tx, white, black common.Address) (game.GameID, error) {
	if s.driver == "postgres" {
		var id int32
		err := tx.QueryRowxContext(ctx, tx.Rebind(insertGameReturningStmt), white.Hex(), black.Hex()).Scan(&id)
		return game.GameID(id), err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(insertGameStmt), white.Hex(), black.Hex())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return game.GameID(id), err
}

// InsertGame persists a game whose id was assigned elsewhere. The client
// daemon uses this to mirror rollup-assigned games.
func (s *Store) InsertGame(ctx context.Context, g *game.Game) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertGameRowStmt),
		int32(g.ID()), g.White().Hex(), g.Black().Hex())
	return err
}

// Game loads a game and replays its recorded moves through the engine.
func (s *Store) Game(ctx context.Context, id game.GameID) (*game.Game, error) {
	var row struct {
		White string `db:"white"`
		Black string `db:"black"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectGameStmt), int32(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var moves []string
	if err := s.db.SelectContext(ctx, &moves, s.db.Rebind(selectMovesStmt), int32(id)); err != nil {
		return nil, err
	}
	return game.FromMoves(id, common.HexToAddress(row.White), common.HexToAddress(row.Black), moves)
}

// GameNotation formats the recorded moves as numbered pairs, e.g.
// "1.e4 e5 2.Nf3 ". Every half-move is followed by a space; a game with an
// odd number of plies ends mid-pair.
func (s *Store) GameNotation(ctx context.Context, id game.GameID) (string, error) {
	var moves []string
	if err := s.db.SelectContext(ctx, &moves, s.db.Rebind(selectMovesStmt), int32(id)); err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 0; i < len(moves); i += 2 {
		fmt.Fprintf(&b, "%d.%s ", i/2+1, moves[i])
		if i+1 < len(moves) {
			b.WriteString(moves[i+1])
			b.WriteByte(' ')
		}
	}
	return b.String(), nil
}

// RecordMove appends a move row. Callers guarantee half-moves arrive in
// ascending order per game.
func (s *Store) RecordMove(ctx context.Context, id game.GameID, m game.Move) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertMoveStmt), int32(id), int(m.HalfMove), m.SAN)
	return err
}

func insertMove(ctx context.Context, tx *sqlx.Tx, id game.GameID, m game.Move) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(insertMoveStmt), int32(id), int(m.HalfMove), m.SAN)
	return err
}

// EndGame terminates a game in one transaction: ratings and counters are
// updated according to the outcome and the game row is deleted. Both rating
// updates use the opponent's pre-update rating. A nil outcome deletes the
// game without rating effects.
func (s *Store) EndGame(ctx context.Context, g *game.Game, outcome *game.Outcome) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if outcome != nil {
		if winner, loser, ok := outcome.WinnerLoser(); ok {
			winnerRating, err := getRating(ctx, tx, winner)
			if err != nil {
				return err
			}
			loserRating, err := getRating(ctx, tx, loser)
			if err != nil {
				return err
			}

			if err := setRating(ctx, tx, winner, rating.Update(winnerRating, rating.Win(loserRating))); err != nil {
				return err
			}
			if err := setRating(ctx, tx, loser, rating.Update(loserRating, rating.Loss(winnerRating))); err != nil {
				return err
			}

			winCol, lossCol := colBlackWins, colWhiteLosses
			if winner == g.White() {
				winCol, lossCol = colWhiteWins, colBlackLosses
			}
			if err := bumpCounter(ctx, tx, winCol, winner); err != nil {
				return err
			}
			if err := bumpCounter(ctx, tx, lossCol, loser); err != nil {
				return err
			}
		} else {
			white, black := g.White(), g.Black()
			whiteRating, err := getRating(ctx, tx, white)
			if err != nil {
				return err
			}
			blackRating, err := getRating(ctx, tx, black)
			if err != nil {
				return err
			}

			if err := setRating(ctx, tx, white, rating.Update(whiteRating, rating.Draw(blackRating))); err != nil {
				return err
			}
			if err := setRating(ctx, tx, black, rating.Update(blackRating, rating.Draw(whiteRating))); err != nil {
				return err
			}
			if err := bumpCounter(ctx, tx, colWhiteDraws, white); err != nil {
				return err
			}
			if err := bumpCounter(ctx, tx, colBlackDraws, black); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(deleteGameStmt), int32(g.ID())); err != nil {
		return err
	}
	return tx.Commit()
}

// Games returns the live games in which address plays, with id > after (all
// games when after is nil), in ascending id order.
func (s *Store) Games(ctx context.Context, address common.Address, after *game.GameID) ([]message.Game, error) {
	from := int32(0)
	if after != nil {
		from = int32(*after) + 1
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(selectGamesStmt), from, address.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []message.Game
	for rows.Next() {
		var (
			id           int32
			white, black string
		)
		if err := rows.Scan(&id, &white, &black); err != nil {
			return nil, err
		}
		games = append(games, message.Game{
			ID:    game.GameID(id),
			White: common.HexToAddress(white),
			Black: common.HexToAddress(black),
		})
	}
	return games, rows.Err()
}

// Moves returns the recorded moves of game id with half_move >= from, in
// ascending half-move order.
func (s *Store) Moves(ctx context.Context, id game.GameID, from uint16) ([]string, error) {
	var moves []string
	err := s.db.SelectContext(ctx, &moves, s.db.Rebind(selectMovesFromStmt), int32(id), int(from))
	return moves, err
}

// MaxGame returns the largest live game id, or nil if no games are live.
func (s *Store) MaxGame(ctx context.Context) (*game.GameID, error) {
	var max sql.NullInt64
	if err := s.db.GetContext(ctx, &max, selectMaxGameStmt); err != nil {
		return nil, err
	}
	if !max.Valid {
		return nil, nil
	}
	id := game.GameID(max.Int64)
	return &id, nil
}

// UserStats returns the stats row for address, with the rating converted to
// the Glicko scale.
func (s *Store) UserStats(ctx context.Context, address common.Address) (message.UserStats, error) {
	var row struct {
		EloValue      float64 `db:"elo_value"`
		EloDeviation  float64 `db:"elo_deviation"`
		EloVolatility float64 `db:"elo_volatility"`
		WhiteWins     int32   `db:"white_wins"`
		WhiteLosses   int32   `db:"white_losses"`
		WhiteDraws    int32   `db:"white_draws"`
		BlackWins     int32   `db:"black_wins"`
		BlackLosses   int32   `db:"black_losses"`
		BlackDraws    int32   `db:"black_draws"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectStatsStmt), address.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return message.UserStats{}, fmt.Errorf("unknown user %s: %w", address.Hex(), ErrNotFound)
	}
	if err != nil {
		return message.UserStats{}, err
	}

	elo := rating.Rating{
		Value:      row.EloValue,
		Deviation:  row.EloDeviation,
		Volatility: row.EloVolatility,
	}
	return message.UserStats{
		Elo:         elo.Glicko(),
		WhiteWins:   uint16(row.WhiteWins),
		WhiteLosses: uint16(row.WhiteLosses),
		WhiteDraws:  uint16(row.WhiteDraws),
		BlackWins:   uint16(row.BlackWins),
		BlackLosses: uint16(row.BlackLosses),
		BlackDraws:  uint16(row.BlackDraws),
	}, nil
}

func getRating(ctx context.Context, tx *sqlx.Tx, address common.Address) (rating.Rating, error) {
	var row struct {
		Value      float64 `db:"elo_value"`
		Deviation  float64 `db:"elo_deviation"`
		Volatility float64 `db:"elo_volatility"`
	}
	if err := tx.GetContext(ctx, &row, tx.Rebind(selectRatingStmt), address.Hex()); err != nil {
		return rating.Rating{}, fmt.Errorf("rating for %s: %w", address.Hex(), err)
	}
	return rating.Rating{Value: row.Value, Deviation: row.Deviation, Volatility: row.Volatility}, nil
}

func setRating(ctx context.Context, tx *sqlx.Tx, address common.Address, r rating.Rating) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(updateRatingStmt),
		r.Value, r.Deviation, r.Volatility, address.Hex())
	return err
}

func bumpCounter(ctx context.Context, tx *sqlx.Tx, column string, address common.Address) error {
	stmt := fmt.Sprintf(`UPDATE "user" SET %s = %s + 1 WHERE address = ?`, column, column)
	_, err := tx.ExecContext(ctx, tx.Rebind(stmt), address.Hex())
	return err
}
