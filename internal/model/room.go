package model

import (
	"encoding/json"
	"time"
)

// RoomID is the opaque unique identifier of a room
type RoomID string

// RoomCode is a human-shareable identifier for joining rooms
type RoomCode string

// RoomStatus represents the lifecycle state of a room
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "WAITING"     // Accepting players
	StatusInProgress RoomStatus = "IN_PROGRESS" // Game started
	StatusFinished   RoomStatus = "FINISHED"    // Game over (terminal)
	StatusCancelled  RoomStatus = "CANCELLED"   // Abandoned before start (terminal)
)

// MemberRole distinguishes the host from ordinary players
type MemberRole string

const (
	RoleHost   MemberRole = "HOST"
	RolePlayer MemberRole = "PLAYER"
)

// Room is a group of players gathered behind a shared code.
// PlayersCount mirrors the number of memberships for the room; the storage
// layer keeps the two in sync atomically.
type Room struct {
	ID           RoomID     `json:"id"`
	Code         RoomCode   `json:"code"`
	HostID       UserID     `json:"host_id"`
	MaxPlayers   int        `json:"max_players"`
	PlayersCount int        `json:"players_count"`
	Status       RoomStatus `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// MembershipID identifies a single (room, user) pairing
type MembershipID string

// Membership records a player's presence in a room. Guesses is an opaque
// per-player progress blob written by the puzzle subsystem; this core stores
// it verbatim and never inspects it.
type Membership struct {
	ID         MembershipID    `json:"id"`
	RoomID     RoomID          `json:"room_id"`
	UserID     UserID          `json:"user_id"`
	Role       MemberRole      `json:"role"`
	JoinedAt   time.Time       `json:"joined_at"`
	LastSeenAt *time.Time      `json:"last_seen_at,omitempty"`
	Guesses    json.RawMessage `json:"guesses,omitempty"`
}

// Terminal reports whether the status admits no further transitions
func (s RoomStatus) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// CanTransitionTo reports whether the status machine permits the edge.
// Allowed edges: WAITING -> IN_PROGRESS, WAITING -> CANCELLED,
// IN_PROGRESS -> FINISHED.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusFinished
	default:
		return false
	}
}

// Joinable reports whether new players may enter the room
func (r *Room) Joinable() bool {
	return r.Status == StatusWaiting
}

// Full reports whether the room is at capacity
func (r *Room) Full() bool {
	return r.PlayersCount >= r.MaxPlayers
}

// Expired reports whether the room's expiry instant has passed
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
