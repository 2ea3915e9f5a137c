package game

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// OutcomeKind enumerates the ways a game can end.
type OutcomeKind int

const (
	OutcomeCheckmate OutcomeKind = iota
	OutcomeResignation
	OutcomeStalemate
	OutcomeInsufficientMaterial
	OutcomeDraw
)

// Outcome is the terminal result of a game. Winner and Loser are set only for
// the decisive kinds (checkmate, resignation).
type Outcome struct {
	Kind   OutcomeKind
	Winner common.Address
	Loser  common.Address
}

// WinnerLoser returns the winning and losing players, if the outcome is
// decisive.
func (o Outcome) WinnerLoser() (winner, loser common.Address, ok bool) {
	switch o.Kind {
	case OutcomeCheckmate, OutcomeResignation:
		return o.Winner, o.Loser, true
	}
	return common.Address{}, common.Address{}, false
}

func (o Outcome) IsVictory() bool {
	_, _, ok := o.WinnerLoser()
	return ok
}

func (o Outcome) IsDraw() bool { return !o.IsVictory() }

// String is the human-readable phrase carried in notices and draw reports.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCheckmate:
		return fmt.Sprintf("%s defeats %s by checkmate", o.Winner.Hex(), o.Loser.Hex())
	case OutcomeResignation:
		return fmt.Sprintf("%s wins by resignation", o.Winner.Hex())
	case OutcomeStalemate:
		return "the game ends in a draw due to stalemate"
	case OutcomeInsufficientMaterial:
		return "the game ends in a draw due to insufficient material"
	default:
		return "the game is drawn"
	}
}
