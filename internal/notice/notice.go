// Package notice encodes the Victory event emitted when a game ends
// decisively.
//
// The payload is the 32-byte event topic hash of the Victory signature
// followed by the ABI-encoded event data, so base-layer tooling can verify
// outcomes without any chess-specific decoding.
package notice

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const victorySignature = "Victory(int32,address,address,string,string)"

// VictoryTopic is the keccak256 hash of the Victory event signature.
var VictoryTopic = crypto.Keccak256Hash([]byte(victorySignature))

var victoryArgs abi.Arguments

func init() {
	victoryArgs = abi.Arguments{
		{Name: "id", Type: mustType("int32")},
		{Name: "winner", Type: mustType("address")},
		{Name: "loser", Type: mustType("address")},
		{Name: "message", Type: mustType("string")},
		{Name: "notation", Type: mustType("string")},
	}
}

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

// Victory describes a decisive game termination.
type Victory struct {
	ID       int32
	Winner   common.Address
	Loser    common.Address
	Message  string
	Notation string
}

// Encode produces the notice payload: topic hash followed by ABI data.
func (v Victory) Encode() ([]byte, error) {
	data, err := victoryArgs.Pack(v.ID, v.Winner, v.Loser, v.Message, v.Notation)
	if err != nil {
		return nil, fmt.Errorf("pack victory: %w", err)
	}
	return append(VictoryTopic.Bytes(), data...), nil
}

// DecodeVictory parses a notice payload produced by Encode.
func DecodeVictory(payload []byte) (Victory, error) {
	if len(payload) < common.HashLength {
		return Victory{}, fmt.Errorf("victory payload too short: %d bytes", len(payload))
	}
	if !bytes.Equal(payload[:common.HashLength], VictoryTopic.Bytes()) {
		return Victory{}, fmt.Errorf("payload is not a Victory notice")
	}
	vals, err := victoryArgs.Unpack(payload[common.HashLength:])
	if err != nil {
		return Victory{}, fmt.Errorf("unpack victory: %w", err)
	}
	if len(vals) != 5 {
		return Victory{}, fmt.Errorf("unexpected victory arity %d", len(vals))
	}
	return Victory{
		ID:       vals[0].(int32),
		Winner:   vals[1].(common.Address),
		Loser:    vals[2].(common.Address),
		Message:  vals[3].(string),
		Notation: vals[4].(string),
	}, nil
}
