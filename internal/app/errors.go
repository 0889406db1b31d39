package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidParent         = errors.New("invalid parent")
	ErrInvalidSnapshot       = errors.New("invalid snapshot")
	ErrInvalidDashboardField = errors.New("invalid dashboard field")
	ErrClientArchived        = errors.New("client archived")
	ErrInvalidActivityData   = errors.New("invalid activity data")
)
