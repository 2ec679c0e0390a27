package resilience

import "time"

// FromRetryValues builds a RetryConfig from the configuration surface
// (max_attempts, base_delay, multiplier), keeping defaults for the rest.
func FromRetryValues(maxAttempts int, baseDelay time.Duration, multiplier float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		cfg.BaseDelay = baseDelay
	}
	if multiplier > 0 {
		cfg.Multiplier = multiplier
	}
	return cfg
}
