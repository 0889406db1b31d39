package tui

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/hylla/kundkoll/internal/domain"
)

// Option configures a Model.
type Option func(*Model)

// WithUser sets the identity attached to every service call and pending change.
func WithUser(userID, displayName string) Option {
	return func(m *Model) {
		m.userID = userID
		m.userName = displayName
	}
}

// WithLogger routes debouncer diagnostics to logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDebounceQuiet sets the dashboard layout quiet period.
func WithDebounceQuiet(quiet time.Duration) Option {
	return func(m *Model) {
		if quiet > 0 {
			m.debounceQuiet = quiet
		}
	}
}

// WithDefaultDateRange sets the range shown before the server answers.
func WithDefaultDateRange(r domain.DateRange) Option {
	return func(m *Model) {
		if r != "" {
			m.dateRange = r
		}
	}
}

// WithCollapseByDefault collapses every parent row the first time a project loads.
func WithCollapseByDefault(enabled bool) Option {
	return func(m *Model) {
		m.collapseByDefault = enabled
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithClock replaces the clock used for pending entries.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithInitialScreen selects the screen shown on start.
func WithInitialScreen(s Screen) Option {
	return func(m *Model) {
		m.screen = s
	}
}

func defaultClipboard(text string) error {
	return clipboard.WriteAll(text)
}
