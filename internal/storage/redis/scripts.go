package redis

const (
	// addDailyUsageScript atomically increments or creates daily usage and
	// returns the new total and the stored icon
	addDailyUsageScript = `
local usage_key = KEYS[1]     -- sitelimit:usage:daily:{date}:{domain}
local index_key = KEYS[2]     -- sitelimit:usage:daily:index:{date}
local dates_key = KEYS[3]     -- sitelimit:usage:dates

local date = ARGV[1]
local domain = ARGV[2]
local seconds = tonumber(ARGV[3])
local icon = ARGV[4]

if redis.call('EXISTS', usage_key) == 0 then
  redis.call('HSET', usage_key,
    'date', date,
    'domain', domain,
    'total_seconds', 0
  )
  redis.call('SADD', index_key, domain)
  redis.call('SADD', dates_key, date)
end

local total = redis.call('HINCRBY', usage_key, 'total_seconds', seconds)

if icon ~= '' then
  redis.call('HSET', usage_key, 'last_icon', icon)
end

return {total, redis.call('HGET', usage_key, 'last_icon') or ''}
`

	// pruneDateScript deletes every usage entry recorded for one date and
	// returns how many entries were removed
	pruneDateScript = `
local index_key = KEYS[1]     -- sitelimit:usage:daily:index:{date}
local dates_key = KEYS[2]     -- sitelimit:usage:dates

local key_prefix = ARGV[1]    -- sitelimit:usage:daily:{date}:
local date = ARGV[2]

local domains = redis.call('SMEMBERS', index_key)
local deleted = 0
for _, domain in ipairs(domains) do
  deleted = deleted + redis.call('DEL', key_prefix .. domain)
end

redis.call('DEL', index_key)
redis.call('SREM', dates_key, date)

return deleted
`

	// upsertIndexedScript replaces a hash and records its id in an index set
	upsertIndexedScript = `
local item_key = KEYS[1]
local index_key = KEYS[2]

local id = ARGV[1]

redis.call('DEL', item_key)
redis.call('HSET', item_key, unpack(ARGV, 2))
redis.call('SADD', index_key, id)

return 'OK'
`

	// deleteIndexedScript removes a hash and its index entry; returns 0 when
	// the hash did not exist
	deleteIndexedScript = `
local item_key = KEYS[1]
local index_key = KEYS[2]

local id = ARGV[1]

redis.call('SREM', index_key, id)
return redis.call('DEL', item_key)
`
)
