package response

import (
	"time"

	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/services/auth"
)

// User represents a user in API responses
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:          string(u.ID),
		DisplayName: u.DisplayName,
		IsGuest:     u.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	User         User   `json:"user"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		User:         UserFromModel(&s.User),
		SessionToken: s.Token,
	}
}

// Room represents a room in API responses
type Room struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	HostID       string     `json:"host_id"`
	MaxPlayers   int        `json:"max_players"`
	PlayersCount int        `json:"players_count"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RoomFromModel converts model.Room
func RoomFromModel(r *model.Room) Room {
	return Room{
		ID:           string(r.ID),
		Code:         string(r.Code),
		HostID:       string(r.HostID),
		MaxPlayers:   r.MaxPlayers,
		PlayersCount: r.PlayersCount,
		Status:       string(r.Status),
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
	}
}

// RoomResponse wraps a room
type RoomResponse struct {
	Room Room `json:"room"`
}

// CreateRoomResponse is the response for room creation
type CreateRoomResponse struct {
	Room       Room   `json:"room"`
	Membership Player `json:"membership"`
}

// Player represents a roster entry in API responses
type Player struct {
	UserID     string     `json:"user_id"`
	Role       string     `json:"role"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// PlayerFromModel converts model.Membership
func PlayerFromModel(m *model.Membership) Player {
	return Player{
		UserID:     string(m.UserID),
		Role:       string(m.Role),
		JoinedAt:   m.JoinedAt,
		LastSeenAt: m.LastSeenAt,
	}
}

// PlayersResponse is the roster listing, ordered by join time ascending
type PlayersResponse struct {
	Players []Player `json:"players"`
}

// PlayersFromModel converts a roster
func PlayersFromModel(members []*model.Membership) PlayersResponse {
	players := make([]Player, len(members))
	for i, m := range members {
		players[i] = PlayerFromModel(m)
	}
	return PlayersResponse{Players: players}
}

// OKResponse acknowledges a mutation with no payload
type OKResponse struct {
	OK bool `json:"ok"`
}
