package resilience

import (
	"time"
)

// FromBackoffConfig converts config values to a BackoffPolicy. Zero values
// keep the defaults.
func FromBackoffConfig(initialSecs, ceilingSecs int, multiplier float64, fallbackAfter int) BackoffPolicy {
	p := DefaultBackoffPolicy()
	if initialSecs > 0 {
		p.Initial = time.Duration(initialSecs) * time.Second
	}
	if ceilingSecs > 0 {
		p.Ceiling = time.Duration(ceilingSecs) * time.Second
	}
	if multiplier > 1 {
		p.Multiplier = multiplier
	}
	if fallbackAfter > 0 {
		p.FallbackAfter = fallbackAfter
	}
	return p
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
