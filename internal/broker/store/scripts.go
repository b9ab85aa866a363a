package store

import "github.com/redis/go-redis/v9"

// Each script is one atomic server-side unit covering a single broker
// operation. go-redis's (*redis.Script).Run issues
// EVALSHA and transparently falls back to EVAL (which re-registers the
// script under its SHA as a side effect) on a NOSCRIPT reply, so a
// preloaded script evicted by the server is reloaded without any extra
// code on our side.
var (
	scriptSubmitReady = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

	scriptSubmitDelayed = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

	// KEYS = {delayed, ready}; ARGV = {now}
	scriptPromoteDue = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #ids == 0 then
  return 0
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
redis.call('LPUSH', KEYS[2], unpack(ids))
return #ids
`)

	// KEYS = {pending, jobs}; ARGV = {id}
	scriptComplete = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return 1
`)

	// KEYS = {pending, ready}; ARGV = {id}
	scriptRetry = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

	// KEYS = {pending, ready}
	scriptDrainPendingList = redis.NewScript(`
local n = 0
while true do
  local v = redis.call('RPOPLPUSH', KEYS[1], KEYS[2])
  if not v then
    break
  end
  n = n + 1
end
redis.call('DEL', KEYS[1])
return n
`)
)
