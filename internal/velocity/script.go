package velocity

// luaScript implements the exact atomic-increment-with-expiry semantics
// required of the velocity counter: a single round trip computes the new
// count, sets the TTL only on first creation, and reports whether the
// threshold was reached.
const luaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("EXPIRE", KEYS[1], tonumber(ARGV[1]))
end
local exceeded = 0
if count >= tonumber(ARGV[2]) then
  exceeded = 1
end
return {count, exceeded}
`
