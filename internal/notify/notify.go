// Package notify fans out room change hints to interested observers.
//
// Hints are advisory: delivery is at-least-once and unordered, and a hint
// carries no fresh payload. Receivers must re-fetch the authoritative room
// and roster state instead of trusting the hint itself.
package notify

import (
	"time"

	"github.com/lmartell/cipherduel/internal/model"
)

// HintKind classifies what changed
type HintKind string

const (
	HintMemberJoined HintKind = "member_joined"
	HintMemberLeft   HintKind = "member_left"
	HintRoomUpdated  HintKind = "room_updated"
)

// Hint signals that something about a room changed
type Hint struct {
	RoomID model.RoomID `json:"room_id"`
	Kind   HintKind     `json:"kind"`
	At     time.Time    `json:"at"`
}

// Publisher is the write side of the notifier, implemented by Notifier and
// satisfied by storage backends' change streams
type Publisher interface {
	Publish(hint Hint)
}
