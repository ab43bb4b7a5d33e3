package redis

import (
	"fmt"

	"github.com/lmartell/cipherduel/internal/model"
)

// Key prefix for all room-coordination data
const keyPrefix = "cipherduel"

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// registeredUserKey returns the Redis key for a RegisteredUser
func registeredUserKey(userID model.UserID) string {
	return fmt.Sprintf("%s:registered_user:%s", keyPrefix, userID)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// roomKey returns the Redis key holding a room's JSON document
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomMembersKey returns the Redis key for a room's membership hash,
// keyed by user ID
func roomMembersKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room_members:%s", keyPrefix, id)
}

// codeIndexKey returns the Redis key for the room code -> room_id index
func codeIndexKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:idx:code:%s", keyPrefix, code)
}

// hintChannel returns the pub/sub channel carrying a room's change hints
func hintChannel(id model.RoomID) string {
	return fmt.Sprintf("%s:hints:%s", keyPrefix, id)
}

// hintChannelPattern matches every room's hint channel
func hintChannelPattern() string {
	return fmt.Sprintf("%s:hints:*", keyPrefix)
}
