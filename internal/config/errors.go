package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidUpdatePeriod is returned when the flush base period is not positive.
	ErrInvalidUpdatePeriod = errors.New("invalid update period: must be positive")

	// ErrInvalidHistoryPeriod is returned when the history sync period is not positive.
	ErrInvalidHistoryPeriod = errors.New("invalid history period: must be positive")

	// ErrNoBackend is returned when neither a backend URL nor a database directory is set.
	ErrNoBackend = errors.New("no backend: set a backend URL or a database directory")

	// ErrInvalidDelay is returned when a capture delay is negative.
	ErrInvalidDelay = errors.New("invalid capture delay: must be non-negative")

	// ErrInvalidStabilizeAttempts is returned when the stabilize attempt count is not positive.
	ErrInvalidStabilizeAttempts = errors.New("invalid stabilize attempts: must be positive")

	// ErrInvalidTimeout is returned when the capture timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid capture timeout: must be positive")

	// ErrInvalidConcurrency is returned when the capture concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid capture concurrency: must be positive")

	// ErrInvalidRate is returned when the capture rate or burst is not positive.
	ErrInvalidRate = errors.New("invalid capture rate: rate and burst must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidClearPolicy is returned for a clear policy other than always or on-ack.
	ErrInvalidClearPolicy = errors.New("invalid clear policy: must be always or on-ack")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidEnv is returned when a PAGETRAIL_* variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
