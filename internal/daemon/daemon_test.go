package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
	"github.com/chesspresso/chesspresso/internal/store"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// stubIndexer feeds the daemon from in-memory channels and records the
// cursors it was asked to stream from.
type stubIndexer struct {
	mu        sync.Mutex
	games     chan message.Game
	moves     map[game.GameID]chan string
	gameAfter *game.GameID
	moveFrom  map[game.GameID]uint16
}

func newStubIndexer() *stubIndexer {
	return &stubIndexer{
		games:    make(chan message.Game),
		moves:    make(map[game.GameID]chan string),
		moveFrom: make(map[game.GameID]uint16),
	}
}

func (s *stubIndexer) movesChan(id game.GameID) chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.moves[id]
	if !ok {
		ch = make(chan string)
		s.moves[id] = ch
	}
	return ch
}

func (s *stubIndexer) GamesWithUser(ctx context.Context, address common.Address, after *game.GameID) <-chan message.Game {
	s.mu.Lock()
	s.gameAfter = after
	s.mu.Unlock()
	return forward(ctx, s.games)
}

func (s *stubIndexer) Moves(ctx context.Context, id game.GameID, from uint16) <-chan string {
	s.mu.Lock()
	s.moveFrom[id] = from
	s.mu.Unlock()
	return forward(ctx, s.movesChan(id))
}

// forward relays src until ctx ends, matching the indexer contract of
// closing streams on cancellation.
func forward[T any](ctx context.Context, src <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *stubIndexer) UserStats(ctx context.Context, address common.Address) (message.UserStats, error) {
	return message.UserStats{}, errors.New("not implemented")
}

// waitFor polls until cond passes or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDaemonMirrorsNewGameAndMoves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.Memory(ctx)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	ix := newStubIndexer()
	d := New(alice, ix, s, WithRetryDelay(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	ix.games <- message.Game{ID: 10, White: alice, Black: bob}
	waitFor(t, func() bool {
		_, err := s.Game(ctx, 10)
		return err == nil
	})

	mv := ix.movesChan(10)
	mv <- "e4"
	mv <- "e5"
	waitFor(t, func() bool {
		g, err := s.Game(ctx, 10)
		return err == nil && g.HalfMove() == 2
	})

	// The mirror starts with zero plies, so the stream begins at ply 1.
	ix.mu.Lock()
	from := ix.moveFrom[10]
	ix.mu.Unlock()
	if from != 1 {
		t.Errorf("moves cursor = %d, want 1", from)
	}

	g, err := s.Game(ctx, 10)
	if err != nil {
		t.Fatalf("load mirror: %v", err)
	}
	if g.Turn() != game.White {
		t.Errorf("turn = %s, want white", g.Turn().Name())
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}

func TestDaemonResumesFromLocalState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.Memory(ctx)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	// Seed a half-mirrored game: id 5 with one recorded ply.
	g := game.New(5, alice, bob)
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatalf("seed game: %v", err)
	}
	m, err := g.PlayNextMove("e4")
	if err != nil {
		t.Fatalf("seed move: %v", err)
	}
	if err := s.RecordMove(ctx, 5, m); err != nil {
		t.Fatalf("seed move: %v", err)
	}

	ix := newStubIndexer()
	d := New(alice, ix, s, WithRetryDelay(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// The move stream must resume after the recorded ply, and the game
	// stream after the largest mirrored id.
	waitFor(t, func() bool {
		ix.mu.Lock()
		defer ix.mu.Unlock()
		return ix.moveFrom[5] == 2 && ix.gameAfter != nil
	})
	ix.mu.Lock()
	after := *ix.gameAfter
	ix.mu.Unlock()
	if after != 5 {
		t.Errorf("games cursor = %s, want 5", after)
	}

	ix.movesChan(5) <- "e5"
	waitFor(t, func() bool {
		g, err := s.Game(ctx, 5)
		return err == nil && g.HalfMove() == 2
	})

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}
