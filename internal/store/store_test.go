package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/rating"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x000000000000000000000000000000000000ca01")
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Memory(context.Background())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Play a complete scholar's mate in game g and return the outcome.
func playScholarsMate(t *testing.T, s *Store, g *game.Game) *game.Outcome {
	t.Helper()
	for _, san := range []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7"} {
		m, err := g.PlayNextMove(san)
		if err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
		if err := s.RecordMove(context.Background(), g.ID(), m); err != nil {
			t.Fatalf("record %s: %v", san, err)
		}
	}
	outcome := g.Outcome()
	if outcome == nil || !outcome.IsVictory() {
		t.Fatalf("scholar's mate did not end the game: %+v", outcome)
	}
	return outcome
}

func TestNewGameAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g1, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	g2, err := s.NewGame(ctx, bob, carol, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if g2.ID() <= g1.ID() {
		t.Fatalf("ids not monotonic: %s then %s", g1.ID(), g2.ID())
	}

	// Ending a game must not free its id for reuse.
	if err := s.EndGame(ctx, g2, nil); err != nil {
		t.Fatalf("end game: %v", err)
	}
	g3, err := s.NewGame(ctx, alice, carol, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if g3.ID() <= g2.ID() {
		t.Fatalf("id %s reused after deleting game %s", g3.ID(), g2.ID())
	}
}

func TestNewGameWithFirstMove(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	e4 := "e4"
	g, err := s.NewGame(ctx, alice, bob, &e4)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if g.HalfMove() != 1 {
		t.Fatalf("half move = %d, want 1", g.HalfMove())
	}

	loaded, err := s.Game(ctx, g.ID())
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if loaded.Hash() != g.Hash() {
		t.Fatalf("replayed hash %s != live hash %s", loaded.Hash(), g.Hash())
	}
}

func TestNewGameIllegalFirstMoveLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	bad := "Ke2"
	if _, err := s.NewGame(ctx, alice, bob, &bad); !errors.Is(err, game.ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}

	max, err := s.MaxGame(ctx)
	if err != nil {
		t.Fatalf("max game: %v", err)
	}
	if max != nil {
		t.Fatalf("orphan game row %s survived a rejected challenge", *max)
	}
	if _, err := s.UserStats(ctx, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan user row survived a rejected challenge: %v", err)
	}
}

func TestGameReplaysRecordedMoves(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	for _, san := range []string{"e4", "e5", "Nf3"} {
		m, err := g.PlayNextMove(san)
		if err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
		if err := s.RecordMove(ctx, g.ID(), m); err != nil {
			t.Fatalf("record %s: %v", san, err)
		}
	}

	loaded, err := s.Game(ctx, g.ID())
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if loaded.Hash() != g.Hash() || loaded.HalfMove() != 3 {
		t.Fatalf("replay mismatch: hash %s vs %s, ply %d", loaded.Hash(), g.Hash(), loaded.HalfMove())
	}
	if loaded.Turn() != game.Black {
		t.Fatalf("turn = %s, want black", loaded.Turn().Name())
	}
}

func TestGameNotFound(t *testing.T) {
	s := open(t)
	if _, err := s.Game(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGameNotation(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	playScholarsMate(t, s, g)

	notation, err := s.GameNotation(ctx, g.ID())
	if err != nil {
		t.Fatalf("notation: %v", err)
	}
	want := "1.e4 e5 2.Qh5 Nc6 3.Bc4 Nf6 4.Qxf7# "
	if notation != want {
		t.Fatalf("notation = %q, want %q", notation, want)
	}
}

func TestGameNotationOddPly(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	e4 := "e4"
	g, err := s.NewGame(ctx, alice, bob, &e4)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	notation, err := s.GameNotation(ctx, g.ID())
	if err != nil {
		t.Fatalf("notation: %v", err)
	}
	if notation != "1.e4 " {
		t.Fatalf("notation = %q, want %q", notation, "1.e4 ")
	}
}

func TestEndGameDecisiveUpdatesRatingsAndCounters(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	outcome := playScholarsMate(t, s, g)

	if err := s.EndGame(ctx, g, outcome); err != nil {
		t.Fatalf("end game: %v", err)
	}

	if _, err := s.Game(ctx, g.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("game row survived termination: %v", err)
	}

	winner, err := s.UserStats(ctx, alice)
	if err != nil {
		t.Fatalf("winner stats: %v", err)
	}
	loser, err := s.UserStats(ctx, bob)
	if err != nil {
		t.Fatalf("loser stats: %v", err)
	}

	if winner.Elo <= 1500 {
		t.Errorf("winner elo = %f, want > 1500", winner.Elo)
	}
	if loser.Elo >= 1500 {
		t.Errorf("loser elo = %f, want < 1500", loser.Elo)
	}
	if winner.WhiteWins != 1 || winner.WhiteLosses != 0 || winner.BlackWins != 0 {
		t.Errorf("winner counters = %+v", winner)
	}
	if loser.BlackLosses != 1 || loser.BlackWins != 0 || loser.WhiteLosses != 0 {
		t.Errorf("loser counters = %+v", loser)
	}
}

func TestEndGameDrawIsSymmetricForEqualPlayers(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if err := s.EndGame(ctx, g, &game.Outcome{Kind: game.OutcomeDraw}); err != nil {
		t.Fatalf("end game: %v", err)
	}

	white, err := s.UserStats(ctx, alice)
	if err != nil {
		t.Fatalf("white stats: %v", err)
	}
	black, err := s.UserStats(ctx, bob)
	if err != nil {
		t.Fatalf("black stats: %v", err)
	}

	// Both updates must read pre-update ratings; for equal players a draw
	// leaves both at the same value.
	if white.Elo != black.Elo {
		t.Errorf("draw asymmetric: white %f, black %f", white.Elo, black.Elo)
	}
	if white.WhiteDraws != 1 || black.BlackDraws != 1 {
		t.Errorf("draw counters: white %+v, black %+v", white, black)
	}
}

func TestUnratedStatsAreGlicko1500(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	if _, err := s.NewGame(ctx, alice, bob, nil); err != nil {
		t.Fatalf("new game: %v", err)
	}
	stats, err := s.UserStats(ctx, alice)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if want := rating.Unrated().Glicko(); stats.Elo != want {
		t.Fatalf("unrated elo = %f, want %f", stats.Elo, want)
	}
}

func TestGamesFiltersByPlayerAndCursor(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g1, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if _, err := s.NewGame(ctx, bob, carol, nil); err != nil {
		t.Fatalf("new game: %v", err)
	}
	g3, err := s.NewGame(ctx, carol, alice, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	games, err := s.Games(ctx, alice, nil)
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	if len(games) != 2 || games[0].ID != g1.ID() || games[1].ID != g3.ID() {
		t.Fatalf("games = %+v", games)
	}

	after := g1.ID()
	games, err = s.Games(ctx, alice, &after)
	if err != nil {
		t.Fatalf("games after %s: %v", after, err)
	}
	if len(games) != 1 || games[0].ID != g3.ID() {
		t.Fatalf("games after %s = %+v", after, games)
	}
}

func TestMovesFromCursor(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g, err := s.NewGame(ctx, alice, bob, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	for _, san := range []string{"e4", "e5", "Nf3", "Nc6"} {
		m, err := g.PlayNextMove(san)
		if err != nil {
			t.Fatalf("play %s: %v", san, err)
		}
		if err := s.RecordMove(ctx, g.ID(), m); err != nil {
			t.Fatalf("record %s: %v", san, err)
		}
	}

	moves, err := s.Moves(ctx, g.ID(), 3)
	if err != nil {
		t.Fatalf("moves: %v", err)
	}
	if len(moves) != 2 || moves[0] != "Nf3" || moves[1] != "Nc6" {
		t.Fatalf("moves from ply 3 = %v", moves)
	}
}

func TestMaxGame(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	max, err := s.MaxGame(ctx)
	if err != nil {
		t.Fatalf("max game: %v", err)
	}
	if max != nil {
		t.Fatalf("max game = %s on empty store, want nil", *max)
	}

	if _, err := s.NewGame(ctx, alice, bob, nil); err != nil {
		t.Fatalf("new game: %v", err)
	}
	g2, err := s.NewGame(ctx, bob, carol, nil)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}

	max, err = s.MaxGame(ctx)
	if err != nil {
		t.Fatalf("max game: %v", err)
	}
	if max == nil || *max != g2.ID() {
		t.Fatalf("max game = %v, want %s", max, g2.ID())
	}
}

func TestInsertGameMirrorsExplicitID(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	g := game.New(41, alice, bob)
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatalf("insert game: %v", err)
	}

	loaded, err := s.Game(ctx, 41)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	if loaded.White() != alice || loaded.Black() != bob {
		t.Fatalf("players = %s vs %s", loaded.White().Hex(), loaded.Black().Hex())
	}
}
