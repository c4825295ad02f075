// Package limiter throttles password guessing per (username, client address) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter is consulted around every password check.
type Limiter interface {
	// Allow reports whether the pair may attempt a login now; when not, the wait until it may.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the pair's failure history.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure counts one wrong password and reports whether the pair is now blocked, and for how long.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Policy is the lockout rule: MaxFails failures inside Window block the pair for Block.
type Policy struct {
	MaxFails int
	Window   time.Duration
	Block    time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool { return p.MaxFails > 0 }

// HashIP keys the limiter by a digest so raw client addresses never reach the table.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
