package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
)

// activityColumns lists activity columns in scanActivity order.
const activityColumns = `id, client_id, user_id, type, summary, data_json, occurred_at, created_at, updated_at`

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// CreateActivity creates activity and records its create event.
func (r *Repository) CreateActivity(ctx context.Context, a domain.Activity, actorID string) error {
	dataJSON, err := encodeData(a.Data)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activities(`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ClientID, a.UserID, string(a.Type), a.Summary, dataJSON, ts(a.OccurredAt), ts(a.CreatedAt), ts(a.UpdatedAt))
	if err != nil {
		return err
	}
	err = insertActivityEvent(ctx, tx, a, domain.ChangeKindCreate, actorID)
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// UpdateActivity updates activity and records its update event.
func (r *Repository) UpdateActivity(ctx context.Context, a domain.Activity, actorID string) error {
	dataJSON, err := encodeData(a.Data)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE activities
		SET type = ?, summary = ?, data_json = ?, occurred_at = ?, updated_at = ?
		WHERE id = ?
	`, string(a.Type), a.Summary, dataJSON, ts(a.OccurredAt), ts(a.UpdatedAt), a.ID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = insertActivityEvent(ctx, tx, a, domain.ChangeKindUpdate, actorID)
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// DeleteActivity deletes activity and records its delete event.
func (r *Repository) DeleteActivity(ctx context.Context, a domain.Activity, actorID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, a.ID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = insertActivityEvent(ctx, tx, a, domain.ChangeKindDelete, actorID)
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetActivity returns activity.
func (r *Repository) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	return scanActivity(row)
}

// ListActivities lists one client's activities, newest first.
func (r *Repository) ListActivities(ctx context.Context, clientID string) ([]domain.Activity, error) {
	return r.queryActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		WHERE client_id = ?
		ORDER BY occurred_at DESC, created_at DESC, id DESC
	`, clientID)
}

// ListRecentActivities lists the newest activities across clients.
func (r *Repository) ListRecentActivities(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	return r.queryActivities(ctx, `
		SELECT `+activityColumns+`
		FROM activities
		ORDER BY occurred_at DESC, created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

func (r *Repository) queryActivities(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListActivityEvents lists one client's newest activity events.
func (r *Repository) ListActivityEvents(ctx context.Context, clientID string, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, activity_id, operation, user_id, created_at
		FROM activity_events
		WHERE client_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivityEvent, 0)
	for rows.Next() {
		var (
			event      domain.ActivityEvent
			opRaw      string
			createdRaw string
		)
		if err := rows.Scan(&event.ID, &event.ClientID, &event.ActivityID, &opRaw, &event.UserID, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeKind(opRaw)
		event.OccurredAt = parseTS(createdRaw)
		out = append(out, event)
	}
	return out, rows.Err()
}

// insertActivityEvent writes one audit row inside the caller's transaction.
func insertActivityEvent(ctx context.Context, execer execerContext, a domain.Activity, op domain.ChangeKind, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = a.UserID
	}
	_, err := execer.ExecContext(ctx, `
		INSERT INTO activity_events(client_id, activity_id, operation, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ClientID, a.ID, string(op), actorID, ts(a.UpdatedAt))
	return err
}

// CreateReminder creates reminder.
func (r *Repository) CreateReminder(ctx context.Context, rem domain.Reminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders(id, client_id, task_id, title, due_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rem.ID, rem.ClientID, rem.TaskID, rem.Title, ts(rem.DueAt), nullableTS(rem.CompletedAt), ts(rem.CreatedAt))
	return err
}

// UpdateReminder updates state for the requested operation.
func (r *Repository) UpdateReminder(ctx context.Context, rem domain.Reminder) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminders
		SET task_id = ?, title = ?, due_at = ?, completed_at = ?
		WHERE id = ?
	`, rem.TaskID, rem.Title, ts(rem.DueAt), nullableTS(rem.CompletedAt), rem.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetReminder returns reminder.
func (r *Repository) GetReminder(ctx context.Context, id string) (domain.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, task_id, title, due_at, completed_at, created_at
		FROM reminders
		WHERE id = ?
	`, id)
	return scanReminder(row)
}

// ListReminders lists reminders by due date.
func (r *Repository) ListReminders(ctx context.Context, includeCompleted bool) ([]domain.Reminder, error) {
	query := `
		SELECT id, client_id, task_id, title, due_at, completed_at, created_at
		FROM reminders
	`
	if !includeCompleted {
		query += ` WHERE completed_at IS NULL`
	}
	query += ` ORDER BY due_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Reminder{}
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}

// GetDashboardPreference returns one user's stored preference.
func (r *Repository) GetDashboardPreference(ctx context.Context, userID string) (domain.DashboardPreference, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, layout_json, date_range, updated_at
		FROM dashboard_preferences
		WHERE user_id = ?
	`, userID)
	return scanPreference(row)
}

// UpsertDashboardPreference creates or replaces one user's preference.
func (r *Repository) UpsertDashboardPreference(ctx context.Context, pref domain.DashboardPreference) error {
	layout := pref.Layout
	if layout == nil {
		layout = []domain.WidgetConfig{}
	}
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("encode dashboard layout: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO dashboard_preferences(user_id, layout_json, date_range, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			layout_json = excluded.layout_json,
			date_range = excluded.date_range,
			updated_at = excluded.updated_at
	`, pref.UserID, string(layoutJSON), string(pref.DateRange), ts(pref.UpdatedAt))
	return err
}

// ListDashboardPreferences lists every stored preference.
func (r *Repository) ListDashboardPreferences(ctx context.Context) ([]domain.DashboardPreference, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, layout_json, date_range, updated_at
		FROM dashboard_preferences
		ORDER BY user_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.DashboardPreference{}
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pref)
	}
	return out, rows.Err()
}

// scanActivity handles scan activity.
func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a           domain.Activity
		typ         string
		dataRaw     string
		occurredRaw string
		createdRaw  string
		updatedRaw  string
	)
	if err := s.Scan(&a.ID, &a.ClientID, &a.UserID, &typ, &a.Summary, &dataRaw, &occurredRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Activity{}, app.ErrNotFound
		}
		return domain.Activity{}, err
	}
	if strings.TrimSpace(dataRaw) == "" {
		dataRaw = "{}"
	}
	if err := json.Unmarshal([]byte(dataRaw), &a.Data); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activities.data_json: %w", err)
	}
	if a.Data == nil {
		a.Data = map[string]any{}
	}
	a.Type = domain.ActivityType(typ)
	a.OccurredAt = parseTS(occurredRaw)
	a.CreatedAt = parseTS(createdRaw)
	a.UpdatedAt = parseTS(updatedRaw)
	return a, nil
}

// scanReminder handles scan reminder.
func scanReminder(s scanner) (domain.Reminder, error) {
	var (
		rem        domain.Reminder
		dueRaw     string
		completed  sql.NullString
		createdRaw string
	)
	if err := s.Scan(&rem.ID, &rem.ClientID, &rem.TaskID, &rem.Title, &dueRaw, &completed, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reminder{}, app.ErrNotFound
		}
		return domain.Reminder{}, err
	}
	rem.DueAt = parseTS(dueRaw)
	rem.CompletedAt = parseNullTS(completed)
	rem.CreatedAt = parseTS(createdRaw)
	return rem, nil
}

// scanPreference handles scan preference.
func scanPreference(s scanner) (domain.DashboardPreference, error) {
	var (
		pref       domain.DashboardPreference
		layoutRaw  string
		dateRange  string
		updatedRaw string
	)
	if err := s.Scan(&pref.UserID, &layoutRaw, &dateRange, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DashboardPreference{}, app.ErrNotFound
		}
		return domain.DashboardPreference{}, err
	}
	if strings.TrimSpace(layoutRaw) == "" {
		layoutRaw = "[]"
	}
	if err := json.Unmarshal([]byte(layoutRaw), &pref.Layout); err != nil {
		return domain.DashboardPreference{}, fmt.Errorf("decode dashboard_preferences.layout_json: %w", err)
	}
	pref.DateRange = domain.DateRange(dateRange)
	pref.UpdatedAt = parseTS(updatedRaw)
	return pref, nil
}

func encodeData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode activity data: %w", err)
	}
	return string(raw), nil
}
