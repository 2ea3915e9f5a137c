package store

// The three logical tables: user (rating triple plus per-color counters),
// game (live games only; rows are deleted on termination), and move (retained
// forever so notation can be reproduced post-mortem).
//
// game.id must be monotonic and never reused, hence AUTOINCREMENT on sqlite
// and an identity column on postgres. Explicit ids are still accepted for the
// client-side mirror, which copies ids assigned by the rollup.

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS "user" (
  address TEXT PRIMARY KEY,
  elo_value REAL NOT NULL,
  elo_deviation REAL NOT NULL,
  elo_volatility REAL NOT NULL,
  white_wins INTEGER NOT NULL DEFAULT 0,
  white_losses INTEGER NOT NULL DEFAULT 0,
  white_draws INTEGER NOT NULL DEFAULT 0,
  black_wins INTEGER NOT NULL DEFAULT 0,
  black_losses INTEGER NOT NULL DEFAULT 0,
  black_draws INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS game (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  white TEXT NOT NULL,
  black TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS move (
  game INTEGER NOT NULL,
  half_move INTEGER NOT NULL,
  san TEXT NOT NULL,
  PRIMARY KEY (game, half_move)
);`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS "user" (
  address TEXT PRIMARY KEY,
  elo_value DOUBLE PRECISION NOT NULL,
  elo_deviation DOUBLE PRECISION NOT NULL,
  elo_volatility DOUBLE PRECISION NOT NULL,
  white_wins INTEGER NOT NULL DEFAULT 0,
  white_losses INTEGER NOT NULL DEFAULT 0,
  white_draws INTEGER NOT NULL DEFAULT 0,
  black_wins INTEGER NOT NULL DEFAULT 0,
  black_losses INTEGER NOT NULL DEFAULT 0,
  black_draws INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS game (
  id INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  white TEXT NOT NULL,
  black TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS move (
  game INTEGER NOT NULL,
  half_move INTEGER NOT NULL,
  san TEXT NOT NULL,
  PRIMARY KEY (game, half_move)
);`

// Queries are written with ? placeholders and rebound per driver.
const (
	insertUserStmt = `INSERT INTO "user" (address, elo_value, elo_deviation, elo_volatility)
VALUES (?, ?, ?, ?) ON CONFLICT (address) DO NOTHING`

	insertGameStmt          = `INSERT INTO game (white, black) VALUES (?, ?)`
	insertGameReturningStmt = `INSERT INTO game (white, black) VALUES (?, ?) RETURNING id`
	insertGameRowStmt       = `INSERT INTO game (id, white, black) VALUES (?, ?, ?)`

	selectGameStmt    = `SELECT white, black FROM game WHERE id = ? LIMIT 1`
	selectGamesStmt   = `SELECT id, white, black FROM game WHERE id >= ? AND ? IN (white, black) ORDER BY id`
	selectMaxGameStmt = `SELECT max(id) FROM game`
	deleteGameStmt    = `DELETE FROM game WHERE id = ?`

	insertMoveStmt      = `INSERT INTO move (game, half_move, san) VALUES (?, ?, ?)`
	selectMovesStmt     = `SELECT san FROM move WHERE game = ? ORDER BY half_move`
	selectMovesFromStmt = `SELECT san FROM move WHERE game = ? AND half_move >= ? ORDER BY half_move`

	selectRatingStmt = `SELECT elo_value, elo_deviation, elo_volatility FROM "user" WHERE address = ? LIMIT 1`
	updateRatingStmt = `UPDATE "user" SET elo_value = ?, elo_deviation = ?, elo_volatility = ? WHERE address = ?`

	selectStatsStmt = `SELECT
  elo_value, elo_deviation, elo_volatility,
  white_wins, white_losses, white_draws,
  black_wins, black_losses, black_draws
FROM "user" WHERE address = ? LIMIT 1`
)

// Per-color result counters. Only these columns are ever spliced into an
// UPDATE statement.
const (
	colWhiteWins   = "white_wins"
	colWhiteLosses = "white_losses"
	colWhiteDraws  = "white_draws"
	colBlackWins   = "black_wins"
	colBlackLosses = "black_losses"
	colBlackDraws  = "black_draws"
)
