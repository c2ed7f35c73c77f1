package timeseries

import "time"

// Config holds configuration for time series storage
type Config struct {
	// Maximum time window to keep data
	MaxWindow time.Duration

	// Maximum points kept per series; older points are overwritten
	MaxPoints int

	// Maximum number of series; new keys beyond it are rejected
	MaxSeries int
}

// DefaultConfig keeps one day of per-minute collection cycles
func DefaultConfig() Config {
	return Config{
		MaxWindow: 24 * time.Hour,
		MaxPoints: 1440,
		MaxSeries: 1000,
	}
}
