package errors

import (
	"math/rand"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts  int             // total attempts beyond the first, e.g. 2 for a 3-attempt policy
	Delays       []time.Duration // per-attempt delay, indexed by attempt number (0-based); last entry repeats if MaxAttempts exceeds len(Delays)
	JitterFactor float64         // +/- randomization applied to each delay, 0 disables it
}

// DefaultRetryConfig is the sync engine's window retry policy: three
// attempts total (spec §4.10). Delays holds 1s/5s/15s, but with
// MaxAttempts at 2 only the 1s and 5s waits are ever taken.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		Delays:       []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
		JitterFactor: 0.25,
	}
}

// CalculateBackoff returns the delay before retrying after attempt (0-based),
// taken from config.Delays and randomized by +/- JitterFactor. An attempt
// past the end of Delays repeats the last configured delay.
func CalculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := lastDelay(config)
	if attempt < len(config.Delays) {
		delay = config.Delays[attempt]
	}

	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		jitterAmount := (rand.Float64()*2 - 1) * jitter
		delay = time.Duration(float64(delay) + jitterAmount)

		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

func lastDelay(config RetryConfig) time.Duration {
	if len(config.Delays) == 0 {
		return 0
	}
	return config.Delays[len(config.Delays)-1]
}
