package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/chesspresso/chesspresso/internal/game"
	"github.com/chesspresso/chesspresso/internal/message"
	"github.com/chesspresso/chesspresso/internal/obslog"
)

// defaultPollInterval paces the inspect polling loops.
const defaultPollInterval = 2 * time.Second

// InspectIndexer implements Indexer over a rollup node's inspect HTTP API.
// Transient inspect failures are logged and retried on the next poll; the
// streams only end with their context.
type InspectIndexer struct {
	nodeURL      string
	http         *fasthttp.Client
	pollInterval time.Duration
}

// InspectOption configures an InspectIndexer.
type InspectOption func(*InspectIndexer)

// WithPollInterval overrides the polling cadence.
func WithPollInterval(d time.Duration) InspectOption {
	return func(ix *InspectIndexer) { ix.pollInterval = d }
}

// NewInspectIndexer builds an indexer for the rollup node at nodeURL.
func NewInspectIndexer(nodeURL string, opts ...InspectOption) *InspectIndexer {
	ix := &InspectIndexer{
		nodeURL:      strings.TrimRight(nodeURL, "/"),
		http:         &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

type inspectResponse struct {
	Reports []struct {
		Payload string `json:"payload"`
	} `json:"reports"`
}

// inspect performs one GET /inspect/<endpoint> round trip and decodes the
// single report the application produces per query.
func (ix *InspectIndexer) inspect(ctx context.Context, endpoint string) (message.Report, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	url := ix.nodeURL + "/inspect/" + endpoint
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)

	deadline := time.Now().Add(10 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := ix.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("inspect %s: %w", endpoint, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, fmt.Errorf("inspect %s: status=%d", endpoint, code)
	}

	var body inspectResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode inspect response: %w", err)
	}
	if len(body.Reports) != 1 {
		return nil, fmt.Errorf("inspect %s: %d reports, want exactly 1", endpoint, len(body.Reports))
	}

	payload, err := hexutil.Decode(body.Reports[0].Payload)
	if err != nil {
		return nil, fmt.Errorf("decode report payload: %w", err)
	}
	return message.ParseReport(payload)
}

func (ix *InspectIndexer) GamesWithUser(ctx context.Context, address common.Address, after *game.GameID) <-chan message.Game {
	out := make(chan message.Game)
	go func() {
		defer close(out)
		cursor := after
		for {
			if !sleep(ctx, ix.pollInterval) {
				return
			}

			endpoint := "games/" + address.Hex()
			if cursor != nil {
				endpoint += "/" + cursor.String()
			}
			report, err := ix.inspect(ctx, endpoint)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				obslog.L().Warn("games_stream", zap.Error(err))
				continue
			}
			games, ok := report.(message.Games)
			if !ok {
				obslog.L().Warn("games_stream_unexpected_report", zap.Any("report", report))
				continue
			}

			for _, g := range games.Games {
				select {
				case out <- g:
				case <-ctx.Done():
					return
				}
				id := g.ID
				cursor = &id
			}
		}
	}()
	return out
}

func (ix *InspectIndexer) Moves(ctx context.Context, id game.GameID, from uint16) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		cursor := from
		for {
			if !sleep(ctx, ix.pollInterval) {
				return
			}

			report, err := ix.inspect(ctx, fmt.Sprintf("moves/%s/%d", id, cursor))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				obslog.L().Warn("moves_stream", zap.Error(err))
				continue
			}
			moves, ok := report.(message.Moves)
			if !ok {
				obslog.L().Warn("moves_stream_unexpected_report", zap.Any("report", report))
				continue
			}

			for _, san := range moves.Moves {
				select {
				case out <- san:
				case <-ctx.Done():
					return
				}
				cursor++
			}
		}
	}()
	return out
}

func (ix *InspectIndexer) UserStats(ctx context.Context, address common.Address) (message.UserStats, error) {
	report, err := ix.inspect(ctx, "stats/"+address.Hex())
	if err != nil {
		return message.UserStats{}, err
	}
	stats, ok := report.(message.UserStatsReport)
	if !ok {
		return message.UserStats{}, fmt.Errorf("unexpected report %T, expected user stats", report)
	}
	return stats.Stats, nil
}

// sleep waits for d, reporting false if ctx ended first.
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
