package room

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lmartell/cipherduel/internal/dependencies/clock"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/roomcode"
	"github.com/lmartell/cipherduel/internal/storage"
)

const (
	// MinPlayers is the smallest allowed room capacity, and also the
	// minimum occupancy required to start a game
	MinPlayers = 2
	// MaxPlayers is the largest allowed room capacity
	MaxPlayers = 10
	// DefaultMaxPlayers is the capacity used when the host doesn't pick one
	DefaultMaxPlayers = 2

	// CreateAttempts bounds how many candidate codes a create will try
	// before giving up with ErrCodeExhausted
	CreateAttempts = 6
)

// CreateParams carries the host's choices for a new room
type CreateParams struct {
	// MaxPlayers is the room capacity; 0 means DefaultMaxPlayers
	MaxPlayers int
	// ExpiresIn bounds the room's lifetime; 0 means the room never expires
	ExpiresIn time.Duration
}

// ErrInvalidMaxPlayers rejects capacities outside [MinPlayers, MaxPlayers]
var ErrInvalidMaxPlayers = errors.New("max players out of range")

// Controller coordinates room lifecycle operations on top of the storage
// layer's atomic primitives. It is stateless: every decision that must hold
// under concurrency is delegated to a single conditional storage call.
type Controller struct {
	storage storage.Storage
	codes   *roomcode.Generator
	clock   clock.Clock
}

// NewController creates a room Controller
func NewController(storage storage.Storage, codes *roomcode.Generator, clock clock.Clock) *Controller {
	return &Controller{
		storage: storage,
		codes:   codes,
		clock:   clock,
	}
}

// CreateRoom allocates a fresh code and creates a WAITING room with the
// given user seeded as its HOST member, all in one storage operation.
// Code collisions are retried with a new candidate up to CreateAttempts
// times before surfacing ErrCodeExhausted.
func (c *Controller) CreateRoom(ctx context.Context, hostID model.UserID, params CreateParams) (*model.Room, *model.Membership, error) {
	maxPlayers := params.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, nil, ErrInvalidMaxPlayers
	}

	now := c.clock.Now()
	var expiresAt *time.Time
	if params.ExpiresIn > 0 {
		t := now.Add(params.ExpiresIn)
		expiresAt = &t
	}

	for attempt := 0; attempt < CreateAttempts; attempt++ {
		room := &model.Room{
			ID:           model.RoomID(uuid.NewString()),
			Code:         c.codes.Candidate(),
			HostID:       hostID,
			MaxPlayers:   maxPlayers,
			PlayersCount: 1,
			Status:       model.StatusWaiting,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
		}
		host := &model.Membership{
			ID:       model.MembershipID(uuid.NewString()),
			RoomID:   room.ID,
			UserID:   hostID,
			Role:     model.RoleHost,
			JoinedAt: now,
		}

		err := c.storage.CreateRoom(ctx, room, host)
		if err == nil {
			return room, host, nil
		}
		if !errors.Is(err, model.ErrCodeTaken) {
			return nil, nil, err
		}
	}

	return nil, nil, model.ErrCodeExhausted
}

// JoinRoom admits the user to the room behind the code. Codes are
// case-insensitive on entry. A user who is already a member gets the
// current room back unchanged rather than an error.
func (c *Controller) JoinRoom(ctx context.Context, code model.RoomCode, userID model.UserID) (*model.Room, error) {
	code = NormalizeCode(code)

	room, err := c.storage.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	member := &model.Membership{
		ID:       model.MembershipID(uuid.NewString()),
		RoomID:   room.ID,
		UserID:   userID,
		Role:     model.RolePlayer,
		JoinedAt: c.clock.Now(),
	}

	updated, err := c.storage.AddMember(ctx, room.ID, member)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyMember) {
			// Idempotent re-join
			return room, nil
		}
		return nil, err
	}
	return updated, nil
}

// LeaveRoom removes the user from the room. The storage op cancels a
// WAITING room that loses its host or empties out.
func (c *Controller) LeaveRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) error {
	_, err := c.storage.RemoveMember(ctx, roomID, userID)
	return err
}

// StartGame moves the room to IN_PROGRESS. Only the host may start, and
// only with at least MinPlayers present; concurrent starts get exactly one
// winner.
func (c *Controller) StartGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	return c.storage.StartGame(ctx, roomID, userID)
}

// CancelRoom abandons a WAITING room. Host-only.
func (c *Controller) CancelRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) error {
	member, err := c.storage.GetMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if member.Role != model.RoleHost {
		return model.ErrNotHost
	}

	_, err = c.storage.TransitionRoom(ctx, roomID, model.StatusWaiting, model.StatusCancelled)
	return err
}

// FinishGame completes an IN_PROGRESS room, releasing its code.
func (c *Controller) FinishGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	if _, err := c.storage.GetMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return c.storage.TransitionRoom(ctx, roomID, model.StatusInProgress, model.StatusFinished)
}

// GetRoom retrieves a room by ID
func (c *Controller) GetRoom(ctx context.Context, roomID model.RoomID) (*model.Room, error) {
	return c.storage.GetRoom(ctx, roomID)
}

// GetRoomByCode retrieves a room by its shareable code (case-insensitive)
func (c *Controller) GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return c.storage.GetRoomByCode(ctx, NormalizeCode(code))
}

// ListPlayers returns the roster ordered by join time ascending
func (c *Controller) ListPlayers(ctx context.Context, roomID model.RoomID) ([]*model.Membership, error) {
	return c.storage.ListMembers(ctx, roomID)
}

// Heartbeat records that the user is still present in the room
func (c *Controller) Heartbeat(ctx context.Context, roomID model.RoomID, userID model.UserID) error {
	return c.storage.TouchMember(ctx, roomID, userID, c.clock.Now())
}

// SaveGuesses stores the user's opaque puzzle-progress blob
func (c *Controller) SaveGuesses(ctx context.Context, roomID model.RoomID, userID model.UserID, guesses json.RawMessage) error {
	return c.storage.UpdateGuesses(ctx, roomID, userID, guesses)
}

// NormalizeCode uppercases and trims a code as typed by a player
func NormalizeCode(code model.RoomCode) model.RoomCode {
	return model.RoomCode(strings.ToUpper(strings.TrimSpace(string(code))))
}

// Interface for dependency injection
type ControllerInterface interface {
	CreateRoom(ctx context.Context, hostID model.UserID, params CreateParams) (*model.Room, *model.Membership, error)
	JoinRoom(ctx context.Context, code model.RoomCode, userID model.UserID) (*model.Room, error)
	LeaveRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) error
	StartGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error)
	CancelRoom(ctx context.Context, roomID model.RoomID, userID model.UserID) error
	FinishGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error)
	GetRoom(ctx context.Context, roomID model.RoomID) (*model.Room, error)
	GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error)
	ListPlayers(ctx context.Context, roomID model.RoomID) ([]*model.Membership, error)
	Heartbeat(ctx context.Context, roomID model.RoomID, userID model.UserID) error
	SaveGuesses(ctx context.Context, roomID model.RoomID, userID model.UserID, guesses json.RawMessage) error
}

var _ ControllerInterface = (*Controller)(nil)
