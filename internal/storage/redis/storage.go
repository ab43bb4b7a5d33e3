package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmartell/cipherduel/internal/dependencies/clock"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/notify"
	"github.com/lmartell/cipherduel/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Rooms are JSON documents, memberships live in a per-room hash, and the
// code index is a plain key guarded by the create script. Conditional
// mutations run as Lua scripts (see scripts.go) so concurrent callers
// converge on one outcome. Room expiry maps onto key TTLs: an expired room
// simply vanishes along with its members and code entry.
//
// Change hints go out over pub/sub rather than into a local notifier, so
// every server instance sees mutations made through any of them; ChangeFeed
// bridges the channel back into the in-process notifier.
type Storage struct {
	client *redis.Client
	cfg    Config
	clock  clock.Clock
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		clock:  clk,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection, e.g. for wiring a ChangeFeed
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// Apply TTL only for guest users
	var ttl time.Duration
	if user.IsGuest {
		ttl = s.cfg.GuestUserTTL
	}
	return s.client.Set(ctx, userKey(user.ID), data, ttl).Err()
}

func (s *Storage) GetUser(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	return s.client.Del(ctx, userKey(id)).Err()
}

// Registered user operations

func (s *Storage) SaveRegisteredUser(ctx context.Context, ru *model.RegisteredUser) error {
	data, err := json.Marshal(ru)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, registeredUserKey(ru.UserID), data, 0)
	pipe.Set(ctx, usernameIndexKey(ru.Username), string(ru.UserID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredUser(ctx context.Context, userID model.UserID) (*model.RegisteredUser, error) {
	data, err := s.client.Get(ctx, registeredUserKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var ru model.RegisteredUser
	if err := json.Unmarshal(data, &ru); err != nil {
		return nil, err
	}
	return &ru, nil
}

func (s *Storage) GetRegisteredUserByUsername(ctx context.Context, username string) (*model.RegisteredUser, error) {
	userIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	return s.GetRegisteredUser(ctx, model.UserID(userIDStr))
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room, host *model.Membership) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return err
	}
	hostJSON, err := json.Marshal(host)
	if err != nil {
		return err
	}

	// Expiry becomes a key TTL; Redis releases the code on its own
	var ttlMillis int64
	if room.ExpiresAt != nil {
		d := room.ExpiresAt.Sub(s.clock.Now())
		if d <= 0 {
			d = time.Millisecond
		}
		ttlMillis = d.Milliseconds()
		if ttlMillis == 0 {
			ttlMillis = 1
		}
	}

	keys := []string{roomKey(room.ID), codeIndexKey(room.Code), roomMembersKey(room.ID)}
	res, err := createRoomScript.Run(ctx, s.client, keys,
		string(roomJSON), string(host.UserID), string(hostJSON), string(room.ID), ttlMillis).Slice()
	if err != nil {
		return err
	}
	if err := scriptStatus(res); err != nil {
		return err
	}

	s.publishHint(ctx, room.ID, notify.HintRoomUpdated)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) GetRoomByCode(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	roomIDStr, err := s.client.Get(ctx, codeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRoomNotFound
		}
		return nil, err
	}

	return s.GetRoom(ctx, model.RoomID(roomIDStr))
}

func (s *Storage) AddMember(ctx context.Context, roomID model.RoomID, m *model.Membership) (*model.Room, error) {
	memberJSON, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	keys := []string{roomKey(roomID), roomMembersKey(roomID)}
	res, err := addMemberScript.Run(ctx, s.client, keys, string(m.UserID), string(memberJSON)).Slice()
	if err != nil {
		return nil, err
	}
	room, err := scriptRoom(res)
	if err != nil {
		return nil, err
	}

	s.publishHint(ctx, roomID, notify.HintMemberJoined)
	return room, nil
}

func (s *Storage) RemoveMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	// A room's code never changes, so reading it ahead of the script is safe
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	keys := []string{roomKey(roomID), roomMembersKey(roomID), codeIndexKey(room.Code)}

	res, err := removeMemberScript.Run(ctx, s.client, keys, string(userID)).Slice()
	if err != nil {
		return nil, err
	}
	updated, err := scriptRoom(res)
	if err != nil {
		return nil, err
	}

	s.publishHint(ctx, roomID, notify.HintMemberLeft)
	if len(res) > 2 {
		if cancelled, ok := res[2].(int64); ok && cancelled == 1 {
			s.publishHint(ctx, roomID, notify.HintRoomUpdated)
		}
	}
	return updated, nil
}

func (s *Storage) StartGame(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Room, error) {
	keys := []string{roomKey(roomID), roomMembersKey(roomID)}
	res, err := startGameScript.Run(ctx, s.client, keys, string(userID)).Slice()
	if err != nil {
		return nil, err
	}
	room, err := scriptRoom(res)
	if err != nil {
		return nil, err
	}

	s.publishHint(ctx, roomID, notify.HintRoomUpdated)
	return room, nil
}

func (s *Storage) TransitionRoom(ctx context.Context, roomID model.RoomID, from, to model.RoomStatus) (*model.Room, error) {
	if !from.CanTransitionTo(to) {
		return nil, model.ErrRoomNotWaiting
	}

	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	terminal := "0"
	if to.Terminal() {
		terminal = "1"
	}

	keys := []string{roomKey(roomID), codeIndexKey(room.Code)}
	res, err := transitionRoomScript.Run(ctx, s.client, keys, string(from), string(to), terminal).Slice()
	if err != nil {
		return nil, err
	}
	updated, err := scriptRoom(res)
	if err != nil {
		return nil, err
	}

	s.publishHint(ctx, roomID, notify.HintRoomUpdated)
	return updated, nil
}

// Membership operations

func (s *Storage) GetMember(ctx context.Context, roomID model.RoomID, userID model.UserID) (*model.Membership, error) {
	exists, err := s.client.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrRoomNotFound
	}

	data, err := s.client.HGet(ctx, roomMembersKey(roomID), string(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotInRoom
		}
		return nil, err
	}

	var member model.Membership
	if err := json.Unmarshal(data, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (s *Storage) ListMembers(ctx context.Context, roomID model.RoomID) ([]*model.Membership, error) {
	exists, err := s.client.Exists(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, model.ErrRoomNotFound
	}

	entries, err := s.client.HGetAll(ctx, roomMembersKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	members := make([]*model.Membership, 0, len(entries))
	for _, raw := range entries {
		var m model.Membership
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].ID < members[j].ID
	})
	return members, nil
}

func (s *Storage) TouchMember(ctx context.Context, roomID model.RoomID, userID model.UserID, at time.Time) error {
	keys := []string{roomKey(roomID), roomMembersKey(roomID)}
	res, err := touchMemberScript.Run(ctx, s.client, keys, string(userID), at.UTC().Format(time.RFC3339Nano)).Slice()
	if err != nil {
		return err
	}
	return scriptStatus(res)
}

func (s *Storage) UpdateGuesses(ctx context.Context, roomID model.RoomID, userID model.UserID, guesses json.RawMessage) error {
	keys := []string{roomKey(roomID), roomMembersKey(roomID)}
	res, err := updateGuessesScript.Run(ctx, s.client, keys, string(userID), string(guesses)).Slice()
	if err != nil {
		return err
	}
	return scriptStatus(res)
}

// publishHint fans a change hint out over pub/sub. A publish failure does
// not fail the mutation; receivers fall back to polling.
func (s *Storage) publishHint(ctx context.Context, roomID model.RoomID, kind notify.HintKind) {
	hint := notify.Hint{RoomID: roomID, Kind: kind, At: s.clock.Now()}
	data, err := json.Marshal(hint)
	if err != nil {
		return
	}
	_ = s.client.Publish(ctx, hintChannel(roomID), data).Err()
}

// scriptStatus maps a script's reply onto the model's sentinel errors.
// Scripts reply {'ok', ...} on success and {'err', '<code>'} on failure.
func scriptStatus(res []interface{}) error {
	if len(res) == 0 {
		return fmt.Errorf("empty script reply")
	}
	marker, ok := res[0].(string)
	if !ok {
		return fmt.Errorf("unexpected script reply type %T", res[0])
	}
	if marker == "ok" {
		return nil
	}
	if marker != "err" || len(res) < 2 {
		return fmt.Errorf("unknown script reply marker %q", marker)
	}
	status, ok := res[1].(string)
	if !ok {
		return fmt.Errorf("unexpected script error type %T", res[1])
	}
	switch status {
	case "not_found":
		return model.ErrRoomNotFound
	case "code_taken":
		return model.ErrCodeTaken
	case "not_joinable":
		return model.ErrRoomNotJoinable
	case "already_member":
		return model.ErrAlreadyMember
	case "full":
		return model.ErrRoomFull
	case "not_in_room":
		return model.ErrNotInRoom
	case "not_host":
		return model.ErrNotHost
	case "not_enough_players":
		return model.ErrNotEnoughPlayers
	case "not_waiting", "conflict":
		return model.ErrRoomNotWaiting
	default:
		return fmt.Errorf("unknown script status %q", status)
	}
}

// scriptRoom decodes the updated room returned by a mutating script
func scriptRoom(res []interface{}) (*model.Room, error) {
	if err := scriptStatus(res); err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("script reply missing room payload")
	}
	raw, ok := res[1].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected room payload type %T", res[1])
	}
	var room model.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, err
	}
	return &room, nil
}
