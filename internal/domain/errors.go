package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidTitle        = errors.New("invalid title")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidPriority     = errors.New("invalid priority")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrInvalidParent       = errors.New("invalid parent")
	ErrInvalidActivityType = errors.New("invalid activity type")
	ErrInvalidChangeKind   = errors.New("invalid change kind")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInvalidWidget       = errors.New("invalid widget")
)
