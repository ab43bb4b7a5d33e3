package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lmartell/cipherduel/internal/dependencies/mocks"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/roomcode"
	"github.com/lmartell/cipherduel/internal/storage/memory"
)

type ControllerSuite struct {
	suite.Suite
	controller *Controller
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.storage = memory.New(s.clock, nil)
	s.controller = NewController(s.storage, roomcode.NewGenerator(s.random), s.clock)
	s.ctx = context.Background()
}

func (s *ControllerSuite) createRoom(code string, maxPlayers int) *model.Room {
	s.random.QueueString(code)
	room, _, err := s.controller.CreateRoom(s.ctx, "host", CreateParams{MaxPlayers: maxPlayers})
	s.Require().NoError(err)
	return room
}

// CreateRoom tests

func (s *ControllerSuite) TestCreateRoomDefaults() {
	s.random.QueueString("AB23CD")

	room, host, err := s.controller.CreateRoom(s.ctx, "host", CreateParams{})
	s.Require().NoError(err)
	s.Equal(model.RoomCode("AB23CD"), room.Code)
	s.Equal(DefaultMaxPlayers, room.MaxPlayers)
	s.Equal(1, room.PlayersCount)
	s.Equal(model.StatusWaiting, room.Status)
	s.Nil(room.ExpiresAt)
	s.Equal(model.RoleHost, host.Role)
	s.Equal(model.UserID("host"), host.UserID)

	// Host membership is persisted along with the room
	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(model.RoleHost, member.Role)
}

func (s *ControllerSuite) TestCreateRoomValidatesCapacity() {
	for _, max := range []int{1, 11, -3} {
		_, _, err := s.controller.CreateRoom(s.ctx, "host", CreateParams{MaxPlayers: max})
		s.ErrorIs(err, ErrInvalidMaxPlayers, "maxPlayers=%d", max)
	}
}

func (s *ControllerSuite) TestCreateRoomSetsExpiry() {
	s.random.QueueString("AB23CD")

	room, _, err := s.controller.CreateRoom(s.ctx, "host", CreateParams{ExpiresIn: 30 * time.Minute})
	s.Require().NoError(err)
	s.Require().NotNil(room.ExpiresAt)
	s.True(room.ExpiresAt.Equal(s.clock.Now().Add(30 * time.Minute)))
}

func (s *ControllerSuite) TestCreateRoomRetriesOnCodeCollision() {
	s.createRoom("AB23CD", 2)

	// First two candidates collide with the existing room's code
	s.random.QueueString("AB23CD", "AB23CD", "XY45ZW")

	room, _, err := s.controller.CreateRoom(s.ctx, "host2", CreateParams{})
	s.Require().NoError(err)
	s.Equal(model.RoomCode("XY45ZW"), room.Code)
}

func (s *ControllerSuite) TestCreateRoomExhaustsAfterSixCollisions() {
	s.createRoom("AB23CD", 2)

	for i := 0; i < CreateAttempts; i++ {
		s.random.QueueString("AB23CD")
	}

	_, _, err := s.controller.CreateRoom(s.ctx, "host2", CreateParams{})
	s.ErrorIs(err, model.ErrCodeExhausted)
}

// JoinRoom tests

func (s *ControllerSuite) TestJoinRoomByCode() {
	room := s.createRoom("AB23CD", 3)

	updated, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	s.Equal(room.ID, updated.ID)
	s.Equal(2, updated.PlayersCount)
}

func (s *ControllerSuite) TestJoinRoomUppercasesCode() {
	room := s.createRoom("AB23CD", 3)

	updated, err := s.controller.JoinRoom(s.ctx, "  ab23cd ", "u2")
	s.Require().NoError(err)
	s.Equal(room.ID, updated.ID)
}

func (s *ControllerSuite) TestJoinRoomIsIdempotentForMembers() {
	room := s.createRoom("AB23CD", 2)

	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	// The room is now full, but an existing member re-joining succeeds
	// without growing the roster
	again, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	s.Equal(room.ID, again.ID)

	got, err := s.storage.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(2, got.PlayersCount)
}

func (s *ControllerSuite) TestJoinRoomFull() {
	s.createRoom("AB23CD", 2)

	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	_, err = s.controller.JoinRoom(s.ctx, "AB23CD", "u3")
	s.ErrorIs(err, model.ErrRoomFull)
}

func (s *ControllerSuite) TestJoinRoomUnknownCode() {
	_, err := s.controller.JoinRoom(s.ctx, "ZZZZZZ", "u2")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestJoinRoomNotJoinableOnceStarted() {
	room := s.createRoom("AB23CD", 3)

	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	_, err = s.controller.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	_, err = s.controller.JoinRoom(s.ctx, "AB23CD", "u3")
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

// LeaveRoom tests

func (s *ControllerSuite) TestLeaveRoom() {
	room := s.createRoom("AB23CD", 3)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	s.Require().NoError(s.controller.LeaveRoom(s.ctx, room.ID, "u2"))

	got, err := s.controller.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(1, got.PlayersCount)
}

func (s *ControllerSuite) TestLeaveRoomNotMember() {
	room := s.createRoom("AB23CD", 3)
	s.ErrorIs(s.controller.LeaveRoom(s.ctx, room.ID, "ghost"), model.ErrNotInRoom)
}

func (s *ControllerSuite) TestHostLeaveCancelsWaitingRoom() {
	room := s.createRoom("AB23CD", 3)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	s.Require().NoError(s.controller.LeaveRoom(s.ctx, room.ID, "host"))

	got, err := s.controller.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusCancelled, got.Status)
}

// StartGame tests

func (s *ControllerSuite) TestStartGame() {
	room := s.createRoom("AB23CD", 2)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	started, err := s.controller.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(model.StatusInProgress, started.Status)
}

func (s *ControllerSuite) TestStartGameGuards() {
	room := s.createRoom("AB23CD", 2)

	_, err := s.controller.StartGame(s.ctx, room.ID, "host")
	s.ErrorIs(err, model.ErrNotEnoughPlayers)

	_, err = s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	_, err = s.controller.StartGame(s.ctx, room.ID, "u2")
	s.ErrorIs(err, model.ErrNotHost)
}

// CancelRoom tests

func (s *ControllerSuite) TestCancelRoomHostOnly() {
	room := s.createRoom("AB23CD", 3)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)

	s.ErrorIs(s.controller.CancelRoom(s.ctx, room.ID, "u2"), model.ErrNotHost)

	s.Require().NoError(s.controller.CancelRoom(s.ctx, room.ID, "host"))

	got, err := s.controller.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(model.StatusCancelled, got.Status)
}

func (s *ControllerSuite) TestCancelRoomNotWaiting() {
	room := s.createRoom("AB23CD", 2)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	_, err = s.controller.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	s.ErrorIs(s.controller.CancelRoom(s.ctx, room.ID, "host"), model.ErrRoomNotWaiting)
}

// FinishGame tests

func (s *ControllerSuite) TestFinishGame() {
	room := s.createRoom("AB23CD", 2)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	_, err = s.controller.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	finished, err := s.controller.FinishGame(s.ctx, room.ID, "u2")
	s.Require().NoError(err)
	s.Equal(model.StatusFinished, finished.Status)

	// Code is released: a new room can claim it
	s.createRoom("AB23CD", 2)
}

func (s *ControllerSuite) TestFinishGameRequiresMembership() {
	room := s.createRoom("AB23CD", 2)
	_, err := s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.Require().NoError(err)
	_, err = s.controller.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	_, err = s.controller.FinishGame(s.ctx, room.ID, "stranger")
	s.ErrorIs(err, model.ErrNotInRoom)
}

// Roster tests

func (s *ControllerSuite) TestListPlayersOrdered() {
	room := s.createRoom("AB23CD", 4)
	for _, u := range []string{"u2", "u3"} {
		s.clock.Advance(time.Second)
		_, err := s.controller.JoinRoom(s.ctx, "AB23CD", model.UserID(u))
		s.Require().NoError(err)
	}

	players, err := s.controller.ListPlayers(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().Len(players, 3)
	s.Equal(model.UserID("host"), players[0].UserID)
	s.Equal(model.UserID("u2"), players[1].UserID)
	s.Equal(model.UserID("u3"), players[2].UserID)
}

// Heartbeat and guesses tests

func (s *ControllerSuite) TestHeartbeat() {
	room := s.createRoom("AB23CD", 2)

	s.clock.Advance(time.Minute)
	s.Require().NoError(s.controller.Heartbeat(s.ctx, room.ID, "host"))

	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Require().NotNil(member.LastSeenAt)
	s.True(member.LastSeenAt.Equal(s.clock.Now()))
}

func (s *ControllerSuite) TestSaveGuesses() {
	room := s.createRoom("AB23CD", 2)

	blob := json.RawMessage(`{"vigenere":{"key":"LEMON"}}`)
	s.Require().NoError(s.controller.SaveGuesses(s.ctx, room.ID, "host", blob))

	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.JSONEq(string(blob), string(member.Guesses))
}

// Expiry tests

func (s *ControllerSuite) TestExpiredRoomBehavesAsDeleted() {
	s.random.QueueString("AB23CD")
	room, _, err := s.controller.CreateRoom(s.ctx, "host", CreateParams{ExpiresIn: 10 * time.Minute})
	s.Require().NoError(err)

	s.clock.Advance(11 * time.Minute)

	_, err = s.controller.GetRoom(s.ctx, room.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)
	_, err = s.controller.JoinRoom(s.ctx, "AB23CD", "u2")
	s.ErrorIs(err, model.ErrRoomNotFound)
}
