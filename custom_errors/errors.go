package custom_errors

import "errors"

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrReportNotFound = errors.New("report not found")
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrExecutionNotRunning means the execution already has a terminal
	// status, usually written by stale claim recovery.
	ErrExecutionNotRunning = errors.New("execution is not running")
)
