// Package dashboard keeps dashboard preferences in sync with the server
// without issuing one request per edit.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/sourcegraph/conc/panics"
)

// DefaultQuiet is the quiet period after the last layout edit before a save.
const DefaultQuiet = time.Second

// PartialReloadFields lists the dashboard fields refreshed after a preference save.
var PartialReloadFields = []string{"summary", "metrics", "preferences", "currentDateRange"}

// Saver persists one dashboard preference with create-or-update semantics.
type Saver interface {
	SaveDashboardPreference(ctx context.Context, pref domain.DashboardPreference, only []string) error
}

// Options configures a Debouncer.
type Options struct {
	Quiet   time.Duration
	Timeout time.Duration
	Logger  *log.Logger
	OnError func(error)
}

// Debouncer coalesces layout edits into one save per quiet period and saves
// date range changes immediately. Saves are fire-and-forget.
type Debouncer struct {
	saver   Saver
	quiet   time.Duration
	timeout time.Duration
	logger  *log.Logger
	onError func(error)

	mu        sync.Mutex
	userID    string
	layout    []domain.WidgetConfig
	dateRange domain.DateRange
	lastSaved []byte
	timer     *time.Timer
	running   bool
	closed    bool
	inflight  sync.WaitGroup
}

// NewDebouncer constructs a debouncer seeded with the preference the server
// last returned. Re-submitting that layout does not trigger a save.
func NewDebouncer(saver Saver, initial domain.DashboardPreference, opts Options) *Debouncer {
	quiet := opts.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	d := &Debouncer{
		saver:     saver,
		quiet:     quiet,
		timeout:   opts.Timeout,
		logger:    logger,
		onError:   opts.OnError,
		userID:    initial.UserID,
		layout:    slices.Clone(initial.Layout),
		dateRange: initial.DateRange,
	}
	if len(initial.Layout) > 0 {
		d.lastSaved = encodeLayout(initial.Layout)
	}
	return d
}

// SetLayout records the edited layout and restarts the quiet period.
func (d *Debouncer) SetLayout(layout []domain.WidgetConfig) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.layout = slices.Clone(layout)
	if d.timer == nil {
		d.timer = time.AfterFunc(d.quiet, d.onTimer)
		return
	}
	d.timer.Reset(d.quiet)
}

// SetDateRange records the range and saves it with the current layout before
// returning. A pending layout flush still fires afterwards.
func (d *Debouncer) SetDateRange(r domain.DateRange) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.dateRange = r
	pref := d.preferenceLocked()
	d.mu.Unlock()

	d.save(pref)
}

// Layout returns the most recently recorded layout.
func (d *Debouncer) Layout() []domain.WidgetConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.layout)
}

// DateRange returns the most recently recorded range.
func (d *Debouncer) DateRange() domain.DateRange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dateRange
}

// Pending reports whether a layout flush is scheduled or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return true
	}
	if len(d.layout) == 0 {
		return false
	}
	return !bytes.Equal(encodeLayout(d.layout), d.lastSaved)
}

// Close stops the timer and waits for an in-flight layout save. No save
// starts after Close returns.
func (d *Debouncer) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.inflight.Wait()
}

func (d *Debouncer) onTimer() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.running {
		d.timer.Reset(d.quiet)
		d.mu.Unlock()
		return
	}
	if len(d.layout) == 0 {
		d.mu.Unlock()
		return
	}
	encoded := encodeLayout(d.layout)
	if bytes.Equal(encoded, d.lastSaved) {
		d.mu.Unlock()
		return
	}
	d.lastSaved = encoded
	d.running = true
	d.inflight.Add(1)
	pref := d.preferenceLocked()
	d.mu.Unlock()

	d.save(pref)

	d.mu.Lock()
	d.running = false
	d.inflight.Done()
	d.mu.Unlock()
}

func (d *Debouncer) preferenceLocked() domain.DashboardPreference {
	return domain.DashboardPreference{
		UserID:    d.userID,
		Layout:    slices.Clone(d.layout),
		DateRange: d.dateRange,
	}
}

func (d *Debouncer) save(pref domain.DashboardPreference) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = d.saver.SaveDashboardPreference(ctx, pref, slices.Clone(PartialReloadFields))
	})
	if err == nil {
		err = catcher.Recovered().AsError()
	}
	if err != nil {
		d.logger.Warn("dashboard preference save failed", "user_id", pref.UserID, "date_range", pref.DateRange, "err", err)
		if d.onError != nil {
			d.onError(err)
		}
		return
	}
	d.logger.Debug("dashboard preference saved", "user_id", pref.UserID, "date_range", pref.DateRange, "widgets", len(pref.Layout))
}

func encodeLayout(layout []domain.WidgetConfig) []byte {
	encoded, err := json.Marshal(layout)
	if err != nil {
		return nil
	}
	return encoded
}
