package runner

import (
	"math"
	"time"

	"yqhp/syncbridge/internal/config"
)

// RetryPolicy controls the delay between attempts of a failing body.
type RetryPolicy struct {
	Delay    time.Duration
	Backoff  string
	MaxDelay time.Duration
}

// PolicyFromConfig converts the retry section of a configuration.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		Delay:    cfg.Delay,
		Backoff:  cfg.Backoff,
		MaxDelay: cfg.MaxDelay,
	}
}

// CalculateBackoffDelay returns the delay after the given failed attempt.
// Delays that would overflow are clamped to the largest Duration.
func CalculateBackoffDelay(baseDelay time.Duration, attempt int, backoff string, maxDelay time.Duration) time.Duration {
	if baseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration
	switch backoff {
	case config.BackoffLinear:
		if baseDelay > time.Duration(math.MaxInt64)/time.Duration(attempt) {
			delay = time.Duration(math.MaxInt64)
		} else {
			delay = baseDelay * time.Duration(attempt)
		}
	case config.BackoffExponential:
		delay = baseDelay
		for i := 1; i < attempt; i++ {
			if delay > time.Duration(math.MaxInt64)/2 {
				delay = time.Duration(math.MaxInt64)
				break
			}
			delay *= 2
		}
	default:
		delay = baseDelay
	}

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// delayFor returns the delay to wait after the given failed attempt.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	return CalculateBackoffDelay(p.Delay, attempt, p.Backoff, p.MaxDelay)
}
