package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

// inspectServer answers GET /inspect/<path> with canned reports, one batch
// per poll, and records the paths it was asked for.
type inspectServer struct {
	t *testing.T

	mu      sync.Mutex
	batches []message.Report
	paths   []string
}

func (s *inspectServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/inspect/")
	s.paths = append(s.paths, path)

	var report message.Report
	if len(s.batches) > 0 {
		report = s.batches[0]
		s.batches = s.batches[1:]
	} else {
		report = s.emptyFor(path)
	}

	payload, err := message.MarshalReport(report)
	if err != nil {
		s.t.Errorf("marshal report: %v", err)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"reports": []map[string]string{{"payload": hexutil.Encode(payload)}},
	})
}

func (s *inspectServer) emptyFor(path string) message.Report {
	switch {
	case strings.HasPrefix(path, "games/"):
		return message.Games{}
	case strings.HasPrefix(path, "moves/"):
		return message.Moves{}
	default:
		return message.UserStatsReport{}
	}
}

func (s *inspectServer) requestedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func newTestIndexer(t *testing.T, s *inspectServer) (*InspectIndexer, context.Context) {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewInspectIndexer(srv.URL, WithPollInterval(time.Millisecond)), ctx
}

func collect[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	var out []T
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed after %d of %d items", len(out), n)
			}
			out = append(out, v)
		case <-timeout:
			t.Fatalf("timed out after %d of %d items", len(out), n)
		}
	}
	return out
}

func TestGamesWithUserAdvancesCursor(t *testing.T) {
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	srv := &inspectServer{t: t, batches: []message.Report{
		message.Games{Games: []message.Game{
			{ID: 1, White: alice, Black: bob},
			{ID: 2, White: bob, Black: alice},
		}},
		message.Games{}, // a quiet poll between batches
		message.Games{Games: []message.Game{{ID: 5, White: alice, Black: bob}}},
	}}
	ix, ctx := newTestIndexer(t, srv)

	games := collect(t, ix.GamesWithUser(ctx, alice, nil), 3)
	if games[0].ID != 1 || games[1].ID != 2 || games[2].ID != 5 {
		t.Fatalf("games = %+v", games)
	}

	paths := srv.requestedPaths()
	if paths[0] != "games/"+alice.Hex() {
		t.Errorf("first poll = %q", paths[0])
	}
	// After delivering game 2 the cursor must ride along.
	if want := "games/" + alice.Hex() + "/2"; paths[1] != want {
		t.Errorf("second poll = %q, want %q", paths[1], want)
	}
}

func TestGamesWithUserStartsAfter(t *testing.T) {
	srv := &inspectServer{t: t}
	ix, ctx := newTestIndexer(t, srv)

	after := game.GameID(7)
	ch := ix.GamesWithUser(ctx, alice, &after)

	// Let a few polls happen, then stop the stream.
	time.Sleep(20 * time.Millisecond)
	select {
	case g, ok := <-ch:
		if ok {
			t.Fatalf("unexpected game %+v", g)
		}
	default:
	}

	for _, path := range srv.requestedPaths() {
		if want := "games/" + alice.Hex() + "/7"; path != want {
			t.Fatalf("poll = %q, want %q", path, want)
		}
	}
}

func TestMovesAdvancesCursor(t *testing.T) {
	srv := &inspectServer{t: t, batches: []message.Report{
		message.Moves{Moves: []string{"e4", "e5"}},
		message.Moves{Moves: []string{"Nf3"}},
	}}
	ix, ctx := newTestIndexer(t, srv)

	moves := collect(t, ix.Moves(ctx, 3, 1), 3)
	if moves[0] != "e4" || moves[1] != "e5" || moves[2] != "Nf3" {
		t.Fatalf("moves = %v", moves)
	}

	paths := srv.requestedPaths()
	if paths[0] != "moves/3/1" {
		t.Errorf("first poll = %q", paths[0])
	}
	if paths[1] != "moves/3/3" {
		t.Errorf("second poll = %q, want moves/3/3", paths[1])
	}
}

func TestMovesStreamClosesWithContext(t *testing.T) {
	srv := &inspectServer{t: t}
	srvURL := httptest.NewServer(srv)
	defer srvURL.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ix := NewInspectIndexer(srvURL.URL, WithPollInterval(time.Millisecond))

	ch := ix.Moves(ctx, 1, 1)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed stream")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close on cancel")
	}
}

func TestUserStats(t *testing.T) {
	srv := &inspectServer{t: t, batches: []message.Report{
		message.UserStatsReport{Stats: message.UserStats{Elo: 1622.5, WhiteWins: 3}},
	}}
	ix, ctx := newTestIndexer(t, srv)

	stats, err := ix.UserStats(ctx, alice)
	if err != nil {
		t.Fatalf("user stats: %v", err)
	}
	if stats.Elo != 1622.5 || stats.WhiteWins != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	if paths := srv.requestedPaths(); paths[0] != "stats/"+alice.Hex() {
		t.Errorf("path = %q", paths[0])
	}
}

func TestInspectRejectsMultipleReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"reports": []map[string]string{{"payload": "0x00"}, {"payload": "0x01"}},
		})
	}))
	defer srv.Close()

	ix := NewInspectIndexer(srv.URL)
	if _, err := ix.UserStats(context.Background(), alice); err == nil {
		t.Fatal("expected error for multi-report response")
	}
}
