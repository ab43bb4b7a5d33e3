package request

import "encoding/json"

// CreateGuestRequest is the request body for creating a guest user
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a user
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	MaxPlayers     int `json:"max_players,omitempty"`
	ExpiresMinutes int `json:"expires_minutes,omitempty"`
}

// UpdateGuessesRequest is the request body for saving puzzle progress.
// Guesses is passed through untouched.
type UpdateGuessesRequest struct {
	Guesses json.RawMessage `json:"guesses"`
}
