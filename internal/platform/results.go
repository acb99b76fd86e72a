package platform

import "github.com/rocketscienceinc/tictactoe-sessions/internal/entity"

const (
	positionWinner  = 1
	positionOther   = 2
	positionUnknown = 3
)

type Results struct {
	Players []PlayerResult `json:"players"`
}

type PlayerResult struct {
	UID      string        `json:"uid"`
	Position int           `json:"position"`
	Results  ResultOutcome `json:"results"`
}

type ResultOutcome struct {
	Win  bool `json:"win"`
	Draw bool `json:"draw"`
}

// NewResults builds the platform payload from the resolved win statuses of a game.
func NewResults(game *entity.Game) *Results {
	results := &Results{Players: make([]PlayerResult, 0, len(game.Players))}

	for _, player := range game.Players {
		results.Players = append(results.Players, PlayerResult{
			UID:      player.ID,
			Position: position(player.WinStatus),
			Results: ResultOutcome{
				Win:  player.WinStatus == entity.WinStatusWin,
				Draw: player.WinStatus == entity.WinStatusDraw,
			},
		})
	}

	return results
}

func position(status entity.WinStatus) int {
	switch status {
	case entity.WinStatusWin:
		return positionWinner
	case entity.WinStatusLose, entity.WinStatusDraw:
		return positionOther
	default:
		return positionUnknown
	}
}
