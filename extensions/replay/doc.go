// Package replay records transaction hashes that have already bought
// access through the gateway, so the same proof cannot be spent twice.
//
// Replay protection is opt-in. A gateway without a guard accepts any proof
// whose transaction verifies on the ledger, however many times it is sent.
//
// # Usage
//
// Single instance, in memory:
//
//	guard := replay.NewInMemoryStore(24 * time.Hour)
//	gateway := http.NewGateway(catalog, verifier, http.WithReplayGuard(guard))
//
// Shared across instances with Redis:
//
//	client, err := replay.OpenRedis(ctx, os.Getenv("REDIS_URL"))
//	guard := replay.NewRedisStore(client, 24*time.Hour)
//
// Entries expire after the TTL. A TTL of zero keeps them forever. The
// gateway releases a claim when the upstream could not be reached, so a
// proof is only spent once a request has been served.
package replay
