package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/mkuo/paperrag/internal/generate"
)

// MaxRetries bounds how often a transient model failure is reattempted.
const MaxRetries = 3

const (
	backoffBase = time.Second
	backoffCap  = 30 * time.Second
)

// IsRetryable reports whether err is a transient model error.
func IsRetryable(err error) bool {
	var re *generate.RetryableError
	return errors.As(err, &re)
}

// Backoff returns the wait before retry attempt n (0-indexed). The delay
// doubles each attempt up to a cap, with up to 50% random jitter on top.
func Backoff(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	return d + rand.N(d/2)
}
