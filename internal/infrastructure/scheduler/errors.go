package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRefreshInProgress is returned when a refresh is triggered while one is running
	ErrRefreshInProgress = errors.New("sync refresh already in progress")
)
