package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lmartell/cipherduel/internal/model"
)

// Storage defines the interface for data persistence.
//
// All cross-client coordination rests here: the code uniqueness constraint,
// the capacity-guarded join, and the start-game guard are single atomic
// operations so that concurrent callers converge on one consistent outcome.
// Implementations publish a change hint after every successful room or
// membership mutation.
type Storage interface {
	// User operations
	SaveUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.UserID) (*model.User, error)
	DeleteUser(ctx context.Context, id model.UserID) error

	// Registered user operations
	SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error
	GetRegisteredUser(ctx context.Context, userID model.UserID) (*model.RegisteredUser, error)
	GetRegisteredUserByUsername(ctx context.Context, username string) (*model.RegisteredUser, error)

	// CreateRoom atomically inserts the room together with its HOST
	// membership. Returns model.ErrCodeTaken when the code is already held
	// by a live (non-terminal, non-expired) room.
	CreateRoom(ctx context.Context, room *model.Room, host *model.Membership) error

	// GetRoom and GetRoomByCode return model.ErrRoomNotFound for absent or
	// expired rooms. An expired room's code is released on lookup.
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error)

	// AddMember atomically inserts a membership and increments the room's
	// player count, guarded by status == WAITING and count < max. Returns
	// the updated room, or model.ErrRoomNotFound, model.ErrRoomNotJoinable,
	// model.ErrRoomFull, model.ErrAlreadyMember.
	AddMember(ctx context.Context, roomID model.RoomID, m *model.Membership) (*model.Room, error)

	// RemoveMember atomically removes a membership and decrements the
	// room's player count. A WAITING room is cancelled (and its code
	// released) when the host leaves or the room empties. Returns the
	// updated room, or model.ErrRoomNotFound, model.ErrNotInRoom.
	RemoveMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error)

	// StartGame atomically verifies the caller holds HOST, the room has at
	// least two players, and the status is WAITING, then transitions to
	// IN_PROGRESS. Returns the updated room, or model.ErrRoomNotFound,
	// model.ErrNotHost, model.ErrNotEnoughPlayers, model.ErrRoomNotWaiting.
	StartGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error)

	// TransitionRoom conditionally moves the room from one status to
	// another, releasing the code when entering a terminal state. Returns
	// model.ErrRoomNotWaiting when the current status differs from `from`.
	TransitionRoom(ctx context.Context, roomID model.RoomID, from, to model.RoomStatus) (*model.Room, error)

	// Membership reads
	GetMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Membership, error)
	ListMembers(ctx context.Context, roomID model.RoomID) ([]*model.Membership, error)

	// TouchMember records a liveness heartbeat on the caller's membership
	TouchMember(ctx context.Context, roomID model.RoomID, userID model.UserID, at time.Time) error

	// UpdateGuesses stores the opaque puzzle-progress blob verbatim
	UpdateGuesses(ctx context.Context, roomID model.RoomID, userID model.UserID, guesses json.RawMessage) error
}
