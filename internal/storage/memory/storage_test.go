package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lmartell/cipherduel/internal/dependencies/mocks"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/testutil"
)

type StorageSuite struct {
	suite.Suite
	storage  *Storage
	clock    *mocks.MockClock
	notifier *notify.Notifier
	ctx      context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.notifier = notify.New(testutil.NopLogger())
	s.storage = New(s.clock, s.notifier)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	s.notifier.Close()
}

func (s *StorageSuite) newRoom(id, code string, maxPlayers int) (*model.Room, *model.Membership) {
	now := s.clock.Now()
	room := &model.Room{
		ID:           model.RoomID(id),
		Code:         model.RoomCode(code),
		HostID:       "host",
		MaxPlayers:   maxPlayers,
		PlayersCount: 1,
		Status:       model.StatusWaiting,
		CreatedAt:    now,
	}
	host := &model.Membership{
		ID:       model.MembershipID(id + "-host"),
		RoomID:   room.ID,
		UserID:   "host",
		Role:     model.RoleHost,
		JoinedAt: now,
	}
	return room, host
}

func (s *StorageSuite) createRoom(id, code string, maxPlayers int) *model.Room {
	room, host := s.newRoom(id, code, maxPlayers)
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room, host))
	return room
}

func (s *StorageSuite) addMember(roomID model.RoomID, userID string) {
	_, err := s.storage.AddMember(s.ctx, roomID, &model.Membership{
		ID:       model.MembershipID("m-" + userID),
		RoomID:   roomID,
		UserID:   model.UserID(userID),
		Role:     model.RolePlayer,
		JoinedAt: s.clock.Now(),
	})
	s.Require().NoError(err)
}

// User tests

func (s *StorageSuite) TestSaveAndGetUser() {
	user := &model.User{ID: "u1", DisplayName: "Alice", IsGuest: true, CreatedAt: s.clock.Now()}
	s.Require().NoError(s.storage.SaveUser(s.ctx, user))

	got, err := s.storage.GetUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
}

func (s *StorageSuite) TestGetUserNotFound() {
	_, err := s.storage.GetUser(s.ctx, "nope")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestRegisteredUserLookupByUsername() {
	ru := &model.RegisteredUser{UserID: "u1", Username: "alice", PasswordHash: "hash"}
	s.Require().NoError(s.storage.SaveRegisteredUser(s.ctx, ru))

	got, err := s.storage.GetRegisteredUserByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.UserID("u1"), got.UserID)

	_, err = s.storage.GetRegisteredUserByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Room creation tests

func (s *StorageSuite) TestCreateRoomSeedsHostMembership() {
	room := s.createRoom("r1", "AB23CD", 2)

	got, err := s.storage.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(1, got.PlayersCount)
	s.Equal(model.StatusWaiting, got.Status)

	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(model.RoleHost, member.Role)
}

func (s *StorageSuite) TestCreateRoomRejectsDuplicateCode() {
	s.createRoom("r1", "AB23CD", 2)

	room2, host2 := s.newRoom("r2", "AB23CD", 2)
	err := s.storage.CreateRoom(s.ctx, room2, host2)
	s.ErrorIs(err, model.ErrCodeTaken)

	// No partial state left behind
	_, err = s.storage.GetRoom(s.ctx, "r2")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestGetRoomByCode() {
	room := s.createRoom("r1", "AB23CD", 2)

	got, err := s.storage.GetRoomByCode(s.ctx, "AB23CD")
	s.Require().NoError(err)
	s.Equal(room.ID, got.ID)

	_, err = s.storage.GetRoomByCode(s.ctx, "ZZZZZZ")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Expiry tests

func (s *StorageSuite) TestExpiredRoomIsNotFoundAndCodeIsReleased() {
	room, host := s.newRoom("r1", "AB23CD", 2)
	expires := s.clock.Now().Add(10 * time.Minute)
	room.ExpiresAt = &expires
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room, host))

	s.clock.Advance(11 * time.Minute)

	_, err := s.storage.GetRoomByCode(s.ctx, "AB23CD")
	s.ErrorIs(err, model.ErrRoomNotFound)

	// The code is reusable after expiry
	room2, host2 := s.newRoom("r2", "AB23CD", 2)
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room2, host2))
}

// AddMember tests

func (s *StorageSuite) TestAddMemberIncrementsCount() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")

	got, err := s.storage.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(2, got.PlayersCount)
}

func (s *StorageSuite) TestAddMemberRejectsWhenFull() {
	room := s.createRoom("r1", "AB23CD", 2)
	s.addMember(room.ID, "u2")

	_, err := s.storage.AddMember(s.ctx, room.ID, &model.Membership{
		ID: "m-u3", RoomID: room.ID, UserID: "u3", Role: model.RolePlayer, JoinedAt: s.clock.Now(),
	})
	s.ErrorIs(err, model.ErrRoomFull)
}

func (s *StorageSuite) TestAddMemberRejectsExistingMember() {
	room := s.createRoom("r1", "AB23CD", 3)

	_, err := s.storage.AddMember(s.ctx, room.ID, &model.Membership{
		ID: "m-host2", RoomID: room.ID, UserID: "host", Role: model.RolePlayer, JoinedAt: s.clock.Now(),
	})
	s.ErrorIs(err, model.ErrAlreadyMember)
}

func (s *StorageSuite) TestAddMemberRejectsNonWaitingRoom() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")

	_, err := s.storage.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	_, err = s.storage.AddMember(s.ctx, room.ID, &model.Membership{
		ID: "m-u3", RoomID: room.ID, UserID: "u3", Role: model.RolePlayer, JoinedAt: s.clock.Now(),
	})
	s.ErrorIs(err, model.ErrRoomNotJoinable)
}

func (s *StorageSuite) TestConcurrentJoinsNeverOvershootCapacity() {
	room := s.createRoom("r1", "AB23CD", 4)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := model.UserID(string(rune('a' + i)))
			_, errs[i] = s.storage.AddMember(s.ctx, room.ID, &model.Membership{
				ID:       model.MembershipID("m-" + string(userID)),
				RoomID:   room.ID,
				UserID:   userID,
				Role:     model.RolePlayer,
				JoinedAt: s.clock.Now(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			s.ErrorIs(err, model.ErrRoomFull)
		}
	}
	s.Equal(3, succeeded, "exactly maxPlayers-1 joins succeed beyond the host")

	got, err := s.storage.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(4, got.PlayersCount)

	members, err := s.storage.ListMembers(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Len(members, 4, "players count mirrors membership rows")
}

// RemoveMember tests

func (s *StorageSuite) TestRemoveMemberDecrementsCount() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")
	s.addMember(room.ID, "u3")

	got, err := s.storage.RemoveMember(s.ctx, room.ID, "u2")
	s.Require().NoError(err)
	s.Equal(2, got.PlayersCount)

	_, err = s.storage.GetMember(s.ctx, room.ID, "u2")
	s.ErrorIs(err, model.ErrNotInRoom)

	members, err := s.storage.ListMembers(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Len(members, 2)
}

func (s *StorageSuite) TestRemoveMemberNotInRoom() {
	room := s.createRoom("r1", "AB23CD", 2)

	_, err := s.storage.RemoveMember(s.ctx, room.ID, "ghost")
	s.ErrorIs(err, model.ErrNotInRoom)
}

func (s *StorageSuite) TestHostLeavingWaitingRoomCancelsIt() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")

	got, err := s.storage.RemoveMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(model.StatusCancelled, got.Status)

	// Code is released for reuse
	_, err = s.storage.GetRoomByCode(s.ctx, "AB23CD")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestLastMemberLeavingCancelsRoom() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")

	_, err := s.storage.RemoveMember(s.ctx, room.ID, "u2")
	s.Require().NoError(err)

	got, err := s.storage.RemoveMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(0, got.PlayersCount)
	s.Equal(model.StatusCancelled, got.Status)
}

func (s *StorageSuite) TestPlayerLeavingInProgressRoomKeepsStatus() {
	room := s.createRoom("r1", "AB23CD", 3)
	s.addMember(room.ID, "u2")
	s.addMember(room.ID, "u3")

	_, err := s.storage.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)

	got, err := s.storage.RemoveMember(s.ctx, room.ID, "u2")
	s.Require().NoError(err)
	s.Equal(model.StatusInProgress, got.Status)
	s.Equal(2, got.PlayersCount)
}

// StartGame tests

func (s *StorageSuite) TestStartGameTransitionsToInProgress() {
	room := s.createRoom("r1", "AB23CD", 2)
	s.addMember(room.ID, "u2")

	got, err := s.storage.StartGame(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Equal(model.StatusInProgress, got.Status)
}

func (s *StorageSuite) TestStartGameRejectsNonHost() {
	room := s.createRoom("r1", "AB23CD", 2)
	s.addMember(room.ID, "u2")

	_, err := s.storage.StartGame(s.ctx, room.ID, "u2")
	s.ErrorIs(err, model.ErrNotHost)

	_, err = s.storage.StartGame(s.ctx, room.ID, "stranger")
	s.ErrorIs(err, model.ErrNotHost)
}

func (s *StorageSuite) TestStartGameRejectsTooFewPlayers() {
	room := s.createRoom("r1", "AB23CD", 2)

	_, err := s.storage.StartGame(s.ctx, room.ID, "host")
	s.ErrorIs(err, model.ErrNotEnoughPlayers)
}

func (s *StorageSuite) TestConcurrentStartsHaveOneWinner() {
	room := s.createRoom("r1", "AB23CD", 2)
	s.addMember(room.ID, "u2")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.storage.StartGame(s.ctx, room.ID, "host")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			s.ErrorIs(err, model.ErrRoomNotWaiting)
		}
	}
	s.Equal(1, winners, "exactly one concurrent start transitions the room")
}

// TransitionRoom tests

func (s *StorageSuite) TestTransitionRoomConditional() {
	room := s.createRoom("r1", "AB23CD", 2)

	got, err := s.storage.TransitionRoom(s.ctx, room.ID, model.StatusWaiting, model.StatusCancelled)
	s.Require().NoError(err)
	s.Equal(model.StatusCancelled, got.Status)

	// Already cancelled: the conditional fails
	_, err = s.storage.TransitionRoom(s.ctx, room.ID, model.StatusWaiting, model.StatusCancelled)
	s.ErrorIs(err, model.ErrRoomNotWaiting)
}

func (s *StorageSuite) TestTransitionRoomRejectsInvalidEdge() {
	room := s.createRoom("r1", "AB23CD", 2)

	_, err := s.storage.TransitionRoom(s.ctx, room.ID, model.StatusWaiting, model.StatusFinished)
	s.ErrorIs(err, model.ErrRoomNotWaiting)
}

func (s *StorageSuite) TestCancelledRoomCodeIsReusable() {
	room := s.createRoom("r1", "AB23CD", 2)

	_, err := s.storage.TransitionRoom(s.ctx, room.ID, model.StatusWaiting, model.StatusCancelled)
	s.Require().NoError(err)

	room2, host2 := s.newRoom("r2", "AB23CD", 2)
	s.Require().NoError(s.storage.CreateRoom(s.ctx, room2, host2))
}

// Roster tests

func (s *StorageSuite) TestListMembersOrderedByJoinTime() {
	room := s.createRoom("r1", "AB23CD", 5)

	for _, u := range []string{"u2", "u3", "u4"} {
		s.clock.Advance(time.Second)
		s.addMember(room.ID, u)
	}

	members, err := s.storage.ListMembers(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Require().Len(members, 4)
	s.Equal(model.UserID("host"), members[0].UserID)
	s.Equal(model.UserID("u2"), members[1].UserID)
	s.Equal(model.UserID("u3"), members[2].UserID)
	s.Equal(model.UserID("u4"), members[3].UserID)
	for i := 1; i < len(members); i++ {
		s.False(members[i].JoinedAt.Before(members[i-1].JoinedAt))
	}
}

// Heartbeat and guesses tests

func (s *StorageSuite) TestTouchMemberRecordsLastSeen() {
	room := s.createRoom("r1", "AB23CD", 2)

	at := s.clock.Now().Add(30 * time.Second)
	s.Require().NoError(s.storage.TouchMember(s.ctx, room.ID, "host", at))

	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.Require().NotNil(member.LastSeenAt)
	s.True(member.LastSeenAt.Equal(at))

	s.ErrorIs(s.storage.TouchMember(s.ctx, room.ID, "ghost", at), model.ErrNotInRoom)
}

func (s *StorageSuite) TestUpdateGuessesStoresBlobVerbatim() {
	room := s.createRoom("r1", "AB23CD", 2)

	blob := json.RawMessage(`{"caesar":{"shift":3},"attempts":["HELLO"]}`)
	s.Require().NoError(s.storage.UpdateGuesses(s.ctx, room.ID, "host", blob))

	member, err := s.storage.GetMember(s.ctx, room.ID, "host")
	s.Require().NoError(err)
	s.JSONEq(string(blob), string(member.Guesses))
}

// Change hint tests

func (s *StorageSuite) TestMutationsPublishHints() {
	sub := s.notifier.Subscribe("r1")
	defer sub.Close()

	room := s.createRoom("r1", "AB23CD", 2)
	s.addMember(room.ID, "u2")

	kinds := []notify.HintKind{}
	for n := 0; n < 2; n++ {
		select {
		case hint := <-sub.C():
			kinds = append(kinds, hint.Kind)
		case <-time.After(time.Second):
			s.FailNow("timed out waiting for hint")
		}
	}
	s.Contains(kinds, notify.HintRoomUpdated)
	s.Contains(kinds, notify.HintMemberJoined)
}
