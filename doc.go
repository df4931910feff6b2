// Package heycache is the cache-aside layer of the Hey API.
//
// Handlers read through a Cache, recompute from the source of truth on a
// miss and write the result back with a randomized TTL drawn from an
// expiry.Band. Writes to the source of truth are followed, in the same
// request, by an eager invalidation of every derived key (see package
// invalidate). Abuse-prone ingestion routes sit behind a fixed-window
// limiter (see package ratelimit).
//
// The store is best effort. Read failures degrade to a miss, write and
// delete failures are logged and dropped, and a Cache built without a
// Provider is disabled: every read misses and every write is a no-op.
//
// Keys:
//
//	poll:<id>               poll with results
//	preference:<profileId>  profile preferences
//	profile:<profileId>     profile details
//	verified                verified profile ids
//	staff-picks             staff picked profiles
//	allowedTokens           allow-listed tokens
//
// Consistency: a concurrent write+invalidate and a read+repopulate of the
// same key can leave a stale entry behind. It lives until its TTL expires.
// Callers that need read-after-write must read the source of truth.
package heycache
