package entity

// WinStatus is the final outcome of a game for one player.
type WinStatus string

const (
	WinStatusWin     WinStatus = "win"
	WinStatusLose    WinStatus = "lose"
	WinStatusDraw    WinStatus = "draw"
	WinStatusUnknown WinStatus = "unknown"
)

// Player is one of the two participants of a game. It refers to its game by id only.
type Player struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	WinStatus WinStatus `json:"win_status"`
}

func NewPlayer(id, gameID, name, symbol string) *Player {
	if name == "" {
		name = "Player " + symbol
	}

	return &Player{
		ID:        id,
		GameID:    gameID,
		Name:      name,
		Symbol:    symbol,
		WinStatus: WinStatusUnknown,
	}
}
