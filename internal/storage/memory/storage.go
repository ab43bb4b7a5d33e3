package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/lmartell/cipherduel/internal/dependencies/clock"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/storage"
)

// Storage is an in-memory implementation of the storage interface. The
// single mutex stands in for the relational store's transaction machinery:
// every conditional operation runs check and write under one critical
// section.
type Storage struct {
	mu        sync.RWMutex
	clock     clock.Clock
	publisher notify.Publisher

	users           map[model.UserID]*model.User
	registeredUsers map[model.UserID]*model.RegisteredUser
	usernameIndex   map[string]model.UserID
	rooms           map[model.RoomID]*model.Room
	codeIndex       map[model.RoomCode]model.RoomID
	members         map[model.RoomID]map[model.UserID]*model.Membership
}

// New creates a new in-memory storage instance. The publisher may be nil,
// in which case change hints are discarded.
func New(clk clock.Clock, publisher notify.Publisher) *Storage {
	return &Storage{
		clock:           clk,
		publisher:       publisher,
		users:           make(map[model.UserID]*model.User),
		registeredUsers: make(map[model.UserID]*model.RegisteredUser),
		usernameIndex:   make(map[string]model.UserID),
		rooms:           make(map[model.RoomID]*model.Room),
		codeIndex:       make(map[model.RoomCode]model.RoomID),
		members:         make(map[model.RoomID]map[model.UserID]*model.Membership),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) publish(roomID model.RoomID, kind notify.HintKind) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(notify.Hint{RoomID: roomID, Kind: kind, At: s.clock.Now()})
}

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Registered user operations

func (s *Storage) SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredUsers[ru.UserID] = ru
	s.usernameIndex[ru.Username] = ru.UserID
	return nil
}

func (s *Storage) GetRegisteredUser(ctx context.Context, userID model.UserID) (*model.RegisteredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ru, ok := s.registeredUsers[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return ru, nil
}

func (s *Storage) GetRegisteredUserByUsername(ctx context.Context, username string) (*model.RegisteredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	ru, ok := s.registeredUsers[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return ru, nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room, host *model.Membership) error {
	s.mu.Lock()

	if existingID, ok := s.codeIndex[room.Code]; ok {
		// The code may be held by a room that has since expired; release
		// it lazily, mirroring lookup behaviour.
		if existing, live := s.rooms[existingID]; live && !existing.Expired(s.clock.Now()) {
			s.mu.Unlock()
			return model.ErrCodeTaken
		}
		s.dropRoomLocked(existingID)
	}

	roomCopy := *room
	hostCopy := *host
	s.rooms[room.ID] = &roomCopy
	s.codeIndex[room.Code] = room.ID
	s.members[room.ID] = map[model.UserID]*model.Membership{host.UserID: &hostCopy}
	s.mu.Unlock()

	s.publish(room.ID, notify.HintRoomUpdated)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.liveRoomLocked(id)
	if err != nil {
		return nil, err
	}
	roomCopy := *room
	return &roomCopy, nil
}

func (s *Storage) GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.codeIndex[code]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	room, err := s.liveRoomLocked(id)
	if err != nil {
		return nil, err
	}
	roomCopy := *room
	return &roomCopy, nil
}

func (s *Storage) AddMember(ctx context.Context, roomID model.RoomID, m *model.Membership) (*model.Room, error) {
	s.mu.Lock()

	room, err := s.liveRoomLocked(roomID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if room.Status != model.StatusWaiting {
		s.mu.Unlock()
		return nil, model.ErrRoomNotJoinable
	}
	if _, exists := s.members[roomID][m.UserID]; exists {
		s.mu.Unlock()
		return nil, model.ErrAlreadyMember
	}
	if room.PlayersCount >= room.MaxPlayers {
		s.mu.Unlock()
		return nil, model.ErrRoomFull
	}

	memberCopy := *m
	s.members[roomID][m.UserID] = &memberCopy
	room.PlayersCount++
	roomCopy := *room
	s.mu.Unlock()

	s.publish(roomID, notify.HintMemberJoined)
	return &roomCopy, nil
}

func (s *Storage) RemoveMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	s.mu.Lock()

	room, err := s.liveRoomLocked(roomID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	member, exists := s.members[roomID][userID]
	if !exists {
		s.mu.Unlock()
		return nil, model.ErrNotInRoom
	}

	delete(s.members[roomID], userID)
	room.PlayersCount--

	// A waiting room cannot continue without its host, and an empty
	// waiting room is abandoned; both cancel the room and free its code.
	cancelled := false
	if room.Status == model.StatusWaiting &&
		(member.Role == model.RoleHost || room.PlayersCount == 0) {
		room.Status = model.StatusCancelled
		s.releaseCodeLocked(room)
		cancelled = true
	}
	roomCopy := *room
	s.mu.Unlock()

	s.publish(roomID, notify.HintMemberLeft)
	if cancelled {
		s.publish(roomID, notify.HintRoomUpdated)
	}
	return &roomCopy, nil
}

func (s *Storage) StartGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	s.mu.Lock()

	room, err := s.liveRoomLocked(roomID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	member, exists := s.members[roomID][userID]
	if !exists || member.Role != model.RoleHost {
		s.mu.Unlock()
		return nil, model.ErrNotHost
	}
	if room.PlayersCount < 2 {
		s.mu.Unlock()
		return nil, model.ErrNotEnoughPlayers
	}
	if room.Status != model.StatusWaiting {
		s.mu.Unlock()
		return nil, model.ErrRoomNotWaiting
	}

	room.Status = model.StatusInProgress
	roomCopy := *room
	s.mu.Unlock()

	s.publish(roomID, notify.HintRoomUpdated)
	return &roomCopy, nil
}

func (s *Storage) TransitionRoom(ctx context.Context, roomID model.RoomID, from, to model.RoomStatus) (*model.Room, error) {
	s.mu.Lock()

	room, err := s.liveRoomLocked(roomID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if room.Status != from || !from.CanTransitionTo(to) {
		s.mu.Unlock()
		return nil, model.ErrRoomNotWaiting
	}

	room.Status = to
	if to.Terminal() {
		s.releaseCodeLocked(room)
	}
	roomCopy := *room
	s.mu.Unlock()

	s.publish(roomID, notify.HintRoomUpdated)
	return &roomCopy, nil
}

// Membership operations

func (s *Storage) GetMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveRoomLocked(roomID); err != nil {
		return nil, err
	}
	member, exists := s.members[roomID][userID]
	if !exists {
		return nil, model.ErrNotInRoom
	}
	memberCopy := *member
	return &memberCopy, nil
}

func (s *Storage) ListMembers(ctx context.Context, roomID model.RoomID) ([]*model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveRoomLocked(roomID); err != nil {
		return nil, err
	}

	list := make([]*model.Membership, 0, len(s.members[roomID]))
	for _, m := range s.members[roomID] {
		memberCopy := *m
		list = append(list, &memberCopy)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (s *Storage) TouchMember(ctx context.Context, roomID model.RoomID, userID model.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveRoomLocked(roomID); err != nil {
		return err
	}
	member, exists := s.members[roomID][userID]
	if !exists {
		return model.ErrNotInRoom
	}
	seen := at
	member.LastSeenAt = &seen
	return nil
}

func (s *Storage) UpdateGuesses(ctx context.Context, roomID model.RoomID, userID model.UserID, guesses json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveRoomLocked(roomID); err != nil {
		return err
	}
	member, exists := s.members[roomID][userID]
	if !exists {
		return model.ErrNotInRoom
	}
	member.Guesses = guesses
	return nil
}

// liveRoomLocked returns the room if it exists and has not expired. Expired
// rooms are dropped on lookup, releasing their code for reuse. Callers must
// hold the write lock.
func (s *Storage) liveRoomLocked(id model.RoomID) (*model.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	if room.Expired(s.clock.Now()) {
		s.dropRoomLocked(id)
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

func (s *Storage) dropRoomLocked(id model.RoomID) {
	if room, ok := s.rooms[id]; ok {
		s.releaseCodeLocked(room)
	}
	delete(s.rooms, id)
	delete(s.members, id)
}

func (s *Storage) releaseCodeLocked(room *model.Room) {
	if current, ok := s.codeIndex[room.Code]; ok && current == room.ID {
		delete(s.codeIndex, room.Code)
	}
}
