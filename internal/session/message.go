package session

import "encoding/json"

const (
	ActionAuth   = "auth"
	ActionAttack = "attack"

	// actionRoot is echoed when a message could not be parsed far enough to know its action.
	actionRoot = "root"
)

// Message is the envelope sent to clients.
type Message struct {
	Action    string `json:"action"`
	Data      any    `json:"data"`
	IsSuccess bool   `json:"is_success"`
}

// Request is the envelope received from clients.
type Request struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type ErrorPayload struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

type AuthRequest struct {
	Token  string `json:"token"`
	GameID string `json:"game_id,omitempty"`
}

type AuthResponse struct {
	PlayerID     string `json:"player_id"`
	IsRegistered bool   `json:"is_registered"`
}

type AttackRequest struct {
	Coordinate *int `json:"coordinate"`
}
