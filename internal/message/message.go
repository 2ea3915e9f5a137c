// Package message defines the JSON wire schema shared by the rollup
// application, the indexer, and the client: Advance requests that mutate
// state, Reports returned to off-chain observers, and the rollup host's
// input metadata.
//
// Both unions are tagged on a "type" field. Unknown tags are rejected, which
// in the rollup application translates into rejecting the whole input.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chesspresso/chesspresso/internal/game"
)

// Status is the verdict returned to the rollup host for each processed input.
type Status string

const (
	StatusAccept Status = "accept"
	StatusReject Status = "reject"
)

// Metadata describes the base-layer input that carried an Advance. Only
// MsgSender is consulted by the application; the rest is recorded by the host.
type Metadata struct {
	BlockNumber uint64         `json:"block_number"`
	EpochIndex  uint64         `json:"epoch_index"`
	InputIndex  uint64         `json:"input_index"`
	MsgSender   common.Address `json:"msg_sender"`
	Timestamp   uint64         `json:"timestamp"`
}

// Advance is a state-mutating request: Challenge, Move, or Resign.
type Advance interface {
	isAdvance()
}

// Challenge invites an opponent to a game.
//
// If FirstMove is set it is executed immediately and the challenger plays
// white. Otherwise the challenger plays black and it is up to the opponent to
// make the first move, implicitly accepting the challenge.
type Challenge struct {
	Opponent  common.Address `json:"opponent"`
	FirstMove *string        `json:"first_move"`
}

// Move plays a SAN move in an existing game, against the intended state Hash.
type Move struct {
	ID   game.GameID   `json:"id"`
	Hash game.GameHash `json:"hash"`
	SAN  string        `json:"san"`
}

// Resign resigns a game, against the intended state Hash.
type Resign struct {
	ID   game.GameID   `json:"id"`
	Hash game.GameHash `json:"hash"`
}

func (Challenge) isAdvance() {}
func (Move) isAdvance()      {}
func (Resign) isAdvance()    {}

type envelope struct {
	Type string `json:"type"`
}

// ParseAdvance decodes a tagged Advance message.
func ParseAdvance(data []byte) (Advance, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse advance: %w", err)
	}
	switch env.Type {
	case "challenge":
		var m Challenge
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse challenge: %w", err)
		}
		return m, nil
	case "move":
		var m Move
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse move: %w", err)
		}
		return m, nil
	case "resign":
		var m Resign
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse resign: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown advance type %q", env.Type)
}

// MarshalAdvance encodes an Advance with its type tag.
func MarshalAdvance(a Advance) ([]byte, error) {
	switch m := a.(type) {
	case Challenge:
		return json.Marshal(struct {
			Type string `json:"type"`
			Challenge
		}{"challenge", m})
	case Move:
		return json.Marshal(struct {
			Type string `json:"type"`
			Move
		}{"move", m})
	case Resign:
		return json.Marshal(struct {
			Type string `json:"type"`
			Resign
		}{"resign", m})
	}
	return nil, fmt.Errorf("unknown advance %T", a)
}
