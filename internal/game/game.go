// Package game implements the deterministic chess state machine and its
// chained state commitment.
//
// A game is fully determined by its ID, the two player addresses, and the
// ordered sequence of canonical SAN moves. The hash chain over those inputs is
// the only commitment shared between the rollup and off-chain observers, so
// its byte layout must never change.
package game

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// GameID identifies a game within one rollup instance. IDs are assigned by the
// store in ascending order and are never reused.
type GameID int32

func (id GameID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseGameID parses a decimal game ID.
func ParseGameID(s string) (GameID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid game id %q: %w", s, err)
	}
	return GameID(n), nil
}

// GameHash is a succinct commitment to a game state.
//
// It is a chained keccak256 hash starting from the initial game state (game ID
// and players) and incrementally appending each canonical move. Because it
// completely captures the game state, a client may build moves against an
// untrusted source of state, such as a preconfirmations feed: the engine
// discards any move whose intended state does not match the actual state, so a
// player cannot be tricked into making an unintended move.
type GameHash = common.Hash

// Re-exported rules-library colors, so callers do not need to import the
// chess package for turn handling.
const (
	White = nchess.White
	Black = nchess.Black
)

// Color is the side a player controls. Use Other() to negate.
type Color = nchess.Color

// Error kinds surfaced by Play and PlayNextMove, in precondition order.
var (
	ErrInvalidPlayer = errors.New("player is not in this game")
	ErrTurnViolation = errors.New("wrong turn")
	ErrStateMismatch = errors.New("game state mismatch")
	ErrIllegalMove   = errors.New("illegal move")
	ErrTerminal      = errors.New("game is already over")
)

// Move is a single applied half-move in canonical notation. SAN carries the
// check ("+") or checkmate ("#") suffix recomputed by the engine; HalfMove is
// the 1-based ply index after the move.
type Move struct {
	HalfMove uint16
	SAN      string
}

// Game is the in-memory state of a single game. All methods are pure
// functions of the game's inputs; nothing here touches a clock, randomness,
// or I/O.
type Game struct {
	id       GameID
	white    common.Address
	black    common.Address
	inner    *nchess.Game
	halfMove uint16
	hash     GameHash
}

// New constructs a game in the starting position.
//
// The initial hash commits to the game ID (little-endian int32) followed by
// the raw white and black address bytes.
func New(id GameID, white, black common.Address) *Game {
	buf := make([]byte, 4, 4+2*common.AddressLength)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	buf = append(buf, white.Bytes()...)
	buf = append(buf, black.Bytes()...)

	return &Game{
		id:    id,
		white: white,
		black: black,
		inner: nchess.NewGame(),
		hash:  crypto.Keccak256Hash(buf),
	}
}

// FromMoves replays the given SAN moves from the starting position, failing
// on the first illegal move.
func FromMoves(id GameID, white, black common.Address, moves []string) (*Game, error) {
	g := New(id, white, black)
	for _, san := range moves {
		if _, err := g.PlayNextMove(san); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ID returns the ID of the game.
func (g *Game) ID() GameID { return g.id }

// Hash returns the hash of the current game state.
func (g *Game) Hash() GameHash { return g.hash }

// White returns the player controlling white.
func (g *Game) White() common.Address { return g.white }

// Black returns the player controlling black.
func (g *Game) Black() common.Address { return g.black }

// Player returns the player controlling color.
func (g *Game) Player(color Color) common.Address {
	if color == White {
		return g.white
	}
	return g.black
}

// PlayerColor returns the color controlled by player, if they are playing in
// this game.
func (g *Game) PlayerColor(player common.Address) (Color, bool) {
	switch player {
	case g.white:
		return White, true
	case g.black:
		return Black, true
	}
	return nchess.NoColor, false
}

// Turn returns the color to move.
func (g *Game) Turn() Color { return g.inner.Position().Turn() }

// HalfMove returns the number of plies played.
func (g *Game) HalfMove() uint16 { return g.halfMove }

// FullMove returns the number of completed full moves.
func (g *Game) FullMove() uint16 { return g.halfMove / 2 }

// Play makes a move as player against the intended state expected.
//
// Preconditions are checked in order: the player must be in the game, it must
// be their turn, and expected must match the current state hash. The last
// check is the at-most-once protection for optimistic play: a move built
// against a stale or forged view of the game is discarded here.
func (g *Game) Play(player common.Address, expected GameHash, san string) (Move, error) {
	color, ok := g.PlayerColor(player)
	if !ok {
		return Move{}, fmt.Errorf("invalid player %s: %w", player.Hex(), ErrInvalidPlayer)
	}
	if g.Turn() != color {
		return Move{}, fmt.Errorf("it is not %s's turn: %w", strings.ToLower(color.Name()), ErrTurnViolation)
	}
	if expected != g.hash {
		return Move{}, fmt.Errorf("the current state %s does not match the intended state %s: %w",
			g.hash, expected, ErrStateMismatch)
	}
	return g.PlayNextMove(san)
}

// PlayNextMove applies the SAN move for the side to move, if legal.
//
// The stored and hashed notation is the re-encoded canonical SAN with a "#"
// or "+" suffix computed from the resulting position, so a caller-supplied
// suffix (right or wrong) has no effect on the commitment.
func (g *Game) PlayNextMove(san string) (Move, error) {
	pos := g.inner.Position()
	mv, err := nchess.AlgebraicNotation{}.Decode(pos, san)
	if err != nil {
		return Move{}, fmt.Errorf("%v: %w", err, ErrIllegalMove)
	}
	notation := nchess.AlgebraicNotation{}.Encode(pos, mv)

	if err := g.inner.Move(mv, nil); err != nil {
		return Move{}, fmt.Errorf("%v: %w", err, ErrIllegalMove)
	}
	g.halfMove++
	g.hash = crypto.Keccak256Hash(g.hash.Bytes(), []byte(notation))

	return Move{HalfMove: g.halfMove, SAN: notation}, nil
}

// Outcome returns the outcome of the game, or nil while play may continue.
func (g *Game) Outcome() *Outcome {
	switch g.inner.Outcome() {
	case nchess.NoOutcome:
		return nil
	case nchess.WhiteWon:
		return &Outcome{Kind: OutcomeCheckmate, Winner: g.white, Loser: g.black}
	case nchess.BlackWon:
		return &Outcome{Kind: OutcomeCheckmate, Winner: g.black, Loser: g.white}
	default:
		switch g.inner.Method() {
		case nchess.Stalemate:
			return &Outcome{Kind: OutcomeStalemate}
		case nchess.InsufficientMaterial:
			return &Outcome{Kind: OutcomeInsufficientMaterial}
		default:
			return &Outcome{Kind: OutcomeDraw}
		}
	}
}
