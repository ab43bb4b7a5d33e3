package redis

import "github.com/redis/go-redis/v9"

// Conditional room mutations run as Lua scripts so that check and write
// execute atomically on the server. Each script returns a status string
// first; mutating scripts additionally return the updated room JSON.
//
// Room documents keep whatever TTL they carry: scripts capture PTTL before
// rewriting the value and re-arm it afterwards.

// createRoomScript inserts a room together with its host membership,
// claiming the code index entry. Fails when the code is already claimed.
// KEYS: room, code index, members hash
// ARGV: room JSON, host user ID, host membership JSON, room ID, TTL millis
var createRoomScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {'err', 'code_taken'}
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[4])
redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
local ttl = tonumber(ARGV[5])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
	redis.call('PEXPIRE', KEYS[2], ttl)
	redis.call('PEXPIRE', KEYS[3], ttl)
end
return {'ok'}
`)

// addMemberScript admits a player, guarded by room status and capacity.
// KEYS: room, members hash
// ARGV: user ID, membership JSON
var addMemberScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return {'err', 'not_found'}
end
local room = cjson.decode(data)
if room.status ~= 'WAITING' then
	return {'err', 'not_joinable'}
end
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
	return {'err', 'already_member'}
end
if room.players_count >= room.max_players then
	return {'err', 'full'}
end
room.players_count = room.players_count + 1
local ttl = redis.call('PTTL', KEYS[1])
local encoded = cjson.encode(room)
redis.call('SET', KEYS[1], encoded)
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
return {'ok', encoded}
`)

// removeMemberScript drops a player and decrements the count. A WAITING
// room loses its host or empties out -> CANCELLED, code released.
// KEYS: room, members hash, code index
// ARGV: user ID
var removeMemberScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return {'err', 'not_found'}
end
local mdata = redis.call('HGET', KEYS[2], ARGV[1])
if not mdata then
	return {'err', 'not_in_room'}
end
local room = cjson.decode(data)
local member = cjson.decode(mdata)
redis.call('HDEL', KEYS[2], ARGV[1])
room.players_count = room.players_count - 1
local cancelled = 0
if room.status == 'WAITING' and (member.role == 'HOST' or room.players_count == 0) then
	room.status = 'CANCELLED'
	redis.call('DEL', KEYS[3])
	cancelled = 1
end
local ttl = redis.call('PTTL', KEYS[1])
local encoded = cjson.encode(room)
redis.call('SET', KEYS[1], encoded)
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {'ok', encoded, cancelled}
`)

// startGameScript transitions WAITING -> IN_PROGRESS when the caller is
// the host and at least two players are present.
// KEYS: room, members hash
// ARGV: user ID
var startGameScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return {'err', 'not_found'}
end
local mdata = redis.call('HGET', KEYS[2], ARGV[1])
if not mdata then
	return {'err', 'not_host'}
end
local member = cjson.decode(mdata)
if member.role ~= 'HOST' then
	return {'err', 'not_host'}
end
local room = cjson.decode(data)
if room.players_count < 2 then
	return {'err', 'not_enough_players'}
end
if room.status ~= 'WAITING' then
	return {'err', 'not_waiting'}
end
room.status = 'IN_PROGRESS'
local ttl = redis.call('PTTL', KEYS[1])
local encoded = cjson.encode(room)
redis.call('SET', KEYS[1], encoded)
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {'ok', encoded}
`)

// transitionRoomScript conditionally moves a room between statuses,
// releasing the code index entry on entering a terminal state.
// KEYS: room, code index
// ARGV: expected status, next status, "1" when next is terminal
var transitionRoomScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
	return {'err', 'not_found'}
end
local room = cjson.decode(data)
if room.status ~= ARGV[1] then
	return {'err', 'conflict'}
end
room.status = ARGV[2]
if ARGV[3] == '1' then
	redis.call('DEL', KEYS[2])
end
local ttl = redis.call('PTTL', KEYS[1])
local encoded = cjson.encode(room)
redis.call('SET', KEYS[1], encoded)
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {'ok', encoded}
`)

// touchMemberScript stamps last_seen_at on a membership.
// KEYS: room, members hash
// ARGV: user ID, RFC3339 timestamp
var touchMemberScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {'err', 'not_found'}
end
local mdata = redis.call('HGET', KEYS[2], ARGV[1])
if not mdata then
	return {'err', 'not_in_room'}
end
local member = cjson.decode(mdata)
member.last_seen_at = ARGV[2]
redis.call('HSET', KEYS[2], ARGV[1], cjson.encode(member))
return {'ok'}
`)

// updateGuessesScript replaces a membership's opaque guesses blob.
// KEYS: room, members hash
// ARGV: user ID, guesses JSON
var updateGuessesScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {'err', 'not_found'}
end
local mdata = redis.call('HGET', KEYS[2], ARGV[1])
if not mdata then
	return {'err', 'not_in_room'}
end
local member = cjson.decode(mdata)
member.guesses = cjson.decode(ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], cjson.encode(member))
return {'ok'}
`)
