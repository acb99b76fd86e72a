package apperror

import "errors"

// authentication.
var (
	ErrAuthentication = errors.New("authentication rejected")
)

// protocol state.
var (
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrAlreadyRegistered    = errors.New("connection already registered")
	ErrNotRegistered        = errors.New("connection is not registered")
	ErrNotYourTurn          = errors.New("it's not your turn")
	ErrCellOccupied         = errors.New("cell is already occupied")
	ErrInvalidCell          = errors.New("invalid cell index")
	ErrGameFinished         = errors.New("game is already finished")
	ErrUnknownAction        = errors.New("unknown action")
	ErrInvalidPayload       = errors.New("invalid payload")
)

// not found.
var (
	ErrNotFound       = errors.New("not found")
	ErrGameNotFound   = Wrap(ErrNotFound, "game not found")
	ErrPlayerNotFound = Wrap(ErrNotFound, "player not found")
)

var (
	ErrGameAlreadyExists  = errors.New("game already exists")
	ErrExternalReporting  = errors.New("external reporting failed")
	ErrInvalidGameRequest = errors.New("invalid game request")
)

var protocolState = []error{
	ErrAlreadyAuthenticated,
	ErrAlreadyRegistered,
	ErrNotRegistered,
	ErrNotYourTurn,
	ErrCellOccupied,
	ErrInvalidCell,
	ErrGameFinished,
	ErrUnknownAction,
	ErrInvalidPayload,
}

// IsProtocolState reports whether err is caused by a message that is not valid in the current session or game state.
func IsProtocolState(err error) bool {
	for _, target := range protocolState {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

type kindError struct {
	kind error
	msg  string
}

func (that *kindError) Error() string { return that.msg }

func (that *kindError) Unwrap() error { return that.kind }

// Wrap returns a new error with its own message that matches kind under errors.Is.
func Wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
