package narrative

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// BackoffPolicy spaces retries exponentially. A zero BaseMs disables delays.
type BackoffPolicy struct {
	BaseMs      int64
	MaxMs       int64
	MaxJitterMs int64
}

// Delay returns the wait before retry number attempt (0-based). Jitter is
// derived from the key so a given customer always waits the same amount.
func (p BackoffPolicy) Delay(key string, attempt int) time.Duration {
	if p.BaseMs <= 0 {
		return 0
	}

	factor := int64(1)
	if attempt > 0 {
		factor = 1 << min(attempt, 30)
	}
	delay := p.BaseMs * factor
	if p.MaxMs > 0 && delay > p.MaxMs {
		delay = p.MaxMs
	}

	return time.Duration(delay+p.jitter(key, attempt)) * time.Millisecond
}

func (p BackoffPolicy) jitter(key string, attempt int) int64 {
	if p.MaxJitterMs <= 0 {
		return 0
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", key, attempt)))
	basis := binary.BigEndian.Uint64(hash[:8])
	return int64(basis % uint64(p.MaxJitterMs)) //nolint:gosec // MaxJitterMs is positive
}
