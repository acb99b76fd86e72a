package entity

import (
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sessions/internal/apperror"
)

const (
	SymbolX = "X"
	SymbolO = "O"

	EmptyCell = ""

	BoardSize = 9
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is the state of one match. Mutating methods expect the caller to hold the game lock.
type Game struct {
	mu sync.Mutex

	ID                string            `json:"id"`
	Board             [BoardSize]string `json:"board"`
	Players           [2]*Player        `json:"players"`
	CurrentPlayerID   string            `json:"current_player_id"`
	IsEnd             bool              `json:"is_end"`
	IsExternalCreated bool              `json:"is_external_created"`
}

// NewGame creates a game for exactly two players; first is the index of the player who moves first.
func NewGame(id string, players [2]*Player, first int, isExternalCreated bool) *Game {
	return &Game{
		ID:                id,
		Players:           players,
		CurrentPlayerID:   players[first%2].ID,
		IsExternalCreated: isExternalCreated,
	}
}

func (that *Game) Lock() { that.mu.Lock() }

func (that *Game) Unlock() { that.mu.Unlock() }

func (that *Game) GetPlayerByID(id string) (*Player, error) {
	for _, player := range that.Players {
		if player != nil && player.ID == id {
			return player, nil
		}
	}

	return nil, fmt.Errorf("%w: player %s in game %s", apperror.ErrPlayerNotFound, id, that.ID)
}

func (that *Game) CurrentPlayer() *Player {
	player, _ := that.GetPlayerByID(that.CurrentPlayerID)
	return player
}

// Opponent returns the other player of the game.
func (that *Game) Opponent(playerID string) *Player {
	if that.Players[0].ID == playerID {
		return that.Players[1]
	}

	return that.Players[0]
}

func (that *Game) IsTurnOf(playerID string) bool {
	return that.CurrentPlayerID == playerID
}

// AttackPoint puts symbol on an empty cell.
func (that *Game) AttackPoint(cell int, symbol string) error {
	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Board[cell] != EmptyCell {
		return fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	that.Board[cell] = symbol

	return nil
}

// CheckBoard scans the board: WIN for a completed line, DRAW for a full board, UNKNOWN otherwise.
func (that *Game) CheckBoard() WinStatus {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return WinStatusWin
		}
	}

	for _, cell := range that.Board {
		if cell == EmptyCell {
			return WinStatusUnknown
		}
	}

	return WinStatusDraw
}

// DistributeWinStatus resolves both players at once. On WIN the current player is the winner.
func (that *Game) DistributeWinStatus(status WinStatus) {
	if status == WinStatusWin {
		current := that.CurrentPlayer()
		current.WinStatus = WinStatusWin
		that.Opponent(current.ID).WinStatus = WinStatusLose
		return
	}

	for _, player := range that.Players {
		player.WinStatus = WinStatusDraw
	}
}

// End marks the game terminal. It returns false if the game had already ended.
func (that *Game) End(status WinStatus) bool {
	if that.IsEnd {
		return false
	}

	that.IsEnd = true
	that.DistributeWinStatus(status)

	return true
}

// SwitchTurn hands the turn to the opponent of the current player and returns the new current player.
func (that *Game) SwitchTurn() *Player {
	next := that.Opponent(that.CurrentPlayerID)
	that.CurrentPlayerID = next.ID

	return next
}

// Map returns the board with nil for empty cells.
func (that *Game) Map() []*string {
	cells := make([]*string, BoardSize)
	for i, cell := range that.Board {
		if cell != EmptyCell {
			symbol := cell
			cells[i] = &symbol
		}
	}

	return cells
}
