package message

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chesspresso/chesspresso/internal/game"
)

// Report is a free-form JSON payload returned to off-chain observers, either
// as a response to an inspect request or as a draw notification.
type Report interface {
	isReport()
}

// Draw notifies observers that a game ended in a draw.
type Draw struct {
	ID       game.GameID `json:"id"`
	Message  string      `json:"message"`
	Notation string      `json:"notation"`
}

// Games is the response to inspect "games".
type Games struct {
	Games []Game `json:"games"`
}

// Moves is the response to inspect "moves".
type Moves struct {
	Moves []string `json:"moves"`
}

// UserStatsReport is the response to inspect "stats".
type UserStatsReport struct {
	Stats UserStats `json:"stats"`
}

func (Draw) isReport()            {}
func (Games) isReport()           {}
func (Moves) isReport()           {}
func (UserStatsReport) isReport() {}

// Game is the external view of a live game row.
type Game struct {
	ID    game.GameID    `json:"id"`
	White common.Address `json:"white"`
	Black common.Address `json:"black"`
}

// UserStats is the external view of a user row. Elo is the Glicko value
// converted from the stored Glicko2 triple.
type UserStats struct {
	Elo float64 `json:"elo"`

	WhiteWins   uint16 `json:"white_wins"`
	WhiteLosses uint16 `json:"white_losses"`
	WhiteDraws  uint16 `json:"white_draws"`

	BlackWins   uint16 `json:"black_wins"`
	BlackLosses uint16 `json:"black_losses"`
	BlackDraws  uint16 `json:"black_draws"`
}

// ParseReport decodes a tagged Report message.
func ParseReport(data []byte) (Report, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	switch env.Type {
	case "draw":
		var r Draw
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse draw report: %w", err)
		}
		return r, nil
	case "games":
		var r Games
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse games report: %w", err)
		}
		return r, nil
	case "moves":
		var r Moves
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse moves report: %w", err)
		}
		return r, nil
	case "userstats":
		var r UserStatsReport
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse userstats report: %w", err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown report type %q", env.Type)
}

// MarshalReport encodes a Report with its type tag.
func MarshalReport(r Report) ([]byte, error) {
	switch m := r.(type) {
	case Draw:
		return json.Marshal(struct {
			Type string `json:"type"`
			Draw
		}{"draw", m})
	case Games:
		return json.Marshal(struct {
			Type string `json:"type"`
			Games
		}{"games", m})
	case Moves:
		return json.Marshal(struct {
			Type string `json:"type"`
			Moves
		}{"moves", m})
	case UserStatsReport:
		return json.Marshal(struct {
			Type string `json:"type"`
			UserStatsReport
		}{"userstats", m})
	}
	return nil, fmt.Errorf("unknown report %T", r)
}
