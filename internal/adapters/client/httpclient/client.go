// Package httpclient talks to a kundkoll server over its REST API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/adapters/server/common"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/dashboard"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

// DefaultTimeout bounds one request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// userHeader mirrors the server's identity header.
const (
	userHeader     = "X-Kundkoll-User"
	userNameHeader = "X-Kundkoll-User-Name"
)

// maxErrorBodyBytes bounds how much of an error response is read.
const maxErrorBodyBytes = 64 << 10

// Error is one structured failure returned by the server.
type Error struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Error returns the server message prefixed with its code.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Code, e.Status)
	}
	return e.Code + ": " + e.Message
}

// Unwrap maps the error code onto the shared transport sentinels.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "not_found":
		return common.ErrNotFound
	case "invalid_request", "method_not_allowed":
		return common.ErrInvalidRequest
	case "conflict":
		return common.ErrConflict
	case "service_unavailable":
		return common.ErrUnavailable
	default:
		return nil
	}
}

// Client is a REST client for one kundkoll server.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	userID   string
	userName string
}

var (
	_ common.Service  = (*Client)(nil)
	_ dashboard.Saver = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout}
		}
	}
}

// WithUser sends the given identity with every request.
func WithUser(userID, displayName string) Option {
	return func(c *Client) {
		c.userID = strings.TrimSpace(userID)
		c.userName = strings.TrimSpace(displayName)
	}
}

// New builds a client for the API rooted at baseURL, for example
// http://127.0.0.1:8080/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required: %w", common.ErrInvalidRequest)
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https: %w", baseURL, common.ErrInvalidRequest)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawPath = ""
	parsed.RawQuery = ""
	parsed.Fragment = ""
	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ListClients lists clients ordered by name.
func (c *Client) ListClients(ctx context.Context, includeArchived bool) ([]domain.Client, error) {
	query := url.Values{}
	if includeArchived {
		query.Set("include_archived", "true")
	}
	var out itemsEnvelope[domain.Client]
	if err := c.do(ctx, http.MethodGet, "/clients", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetClient returns one client.
func (c *Client) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	var out domain.Client
	err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID), nil, nil, &out)
	return out, err
}

// CreateClient creates one client.
func (c *Client) CreateClient(ctx context.Context, in common.CreateClientRequest) (domain.Client, error) {
	var out domain.Client
	err := c.do(ctx, http.MethodPost, "/clients", nil, in, &out)
	return out, err
}

// ArchiveClient archives one client.
func (c *Client) ArchiveClient(ctx context.Context, clientID string) (domain.Client, error) {
	var out domain.Client
	err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/archive", nil, nil, &out)
	return out, err
}

// ListProjects lists projects for one client, or every project when clientID is empty.
func (c *Client) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	query := url.Values{}
	if clientID = strings.TrimSpace(clientID); clientID != "" {
		query.Set("client_id", clientID)
	}
	var out itemsEnvelope[domain.Project]
	if err := c.do(ctx, http.MethodGet, "/projects", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateProject creates one project.
func (c *Client) CreateProject(ctx context.Context, in common.CreateProjectRequest) (domain.Project, error) {
	var out domain.Project
	err := c.do(ctx, http.MethodPost, "/projects", nil, in, &out)
	return out, err
}

// TaskTimeline returns one project's flattened task rows.
func (c *Client) TaskTimeline(ctx context.Context, projectID string, collapsed []string) ([]tasktree.Row, error) {
	query := url.Values{}
	if ids := joinNonEmpty(collapsed); ids != "" {
		query.Set("collapsed", ids)
	}
	var out itemsEnvelope[tasktree.Row]
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/timeline", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateTask creates one task.
func (c *Client) CreateTask(ctx context.Context, in common.CreateTaskRequest) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &out)
	return out, err
}

// UpdateTask updates one task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, in common.UpdateTaskRequest) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(taskID), nil, in, &out)
	return out, err
}

// DeleteTask deletes one task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil, nil)
}

// ListClientActivities lists confirmed activities for one client.
func (c *Client) ListClientActivities(ctx context.Context, clientID string) ([]domain.Activity, error) {
	var out itemsEnvelope[domain.Activity]
	if err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/activities", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListActivityEvents lists the audit trail for one client.
func (c *Client) ListActivityEvents(ctx context.Context, clientID string, limit int) ([]domain.ActivityEvent, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out itemsEnvelope[domain.ActivityEvent]
	if err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/activity_events", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// LogActivity records one activity for a client.
func (c *Client) LogActivity(ctx context.Context, clientID string, in common.LogActivityRequest) (domain.Activity, error) {
	var out domain.Activity
	err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/activities", nil, in, &out)
	return out, err
}

// UpdateActivity applies a partial payload to one activity.
func (c *Client) UpdateActivity(ctx context.Context, activityID string, payload domain.ActivityPayload) (domain.Activity, error) {
	var out domain.Activity
	err := c.do(ctx, http.MethodPatch, "/activities/"+url.PathEscape(activityID), nil, payload, &out)
	return out, err
}

// DeleteActivity deletes one activity.
func (c *Client) DeleteActivity(ctx context.Context, activityID string) error {
	return c.do(ctx, http.MethodDelete, "/activities/"+url.PathEscape(activityID), nil, nil, nil)
}

// ApplyActivityChange confirms one queued change on the server.
func (c *Client) ApplyActivityChange(ctx context.Context, clientID string, change domain.ActivityChange) (domain.Activity, error) {
	var out domain.Activity
	err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/activities/changes", nil, change, &out)
	return out, err
}

// ClientActivityView asks the server to merge pending changes into the client's timeline.
func (c *Client) ClientActivityView(ctx context.Context, clientID string, pending []domain.ActivityChange) ([]activity.Display, error) {
	var out itemsEnvelope[activity.Display]
	body := common.ActivityViewRequest{Pending: pending}
	if err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(clientID)+"/activity_view", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ListDueReminders lists open reminders due at or before until.
func (c *Client) ListDueReminders(ctx context.Context, until time.Time) ([]domain.Reminder, error) {
	query := url.Values{}
	if !until.IsZero() {
		query.Set("until", until.UTC().Format(time.RFC3339))
	}
	var out itemsEnvelope[domain.Reminder]
	if err := c.do(ctx, http.MethodGet, "/reminders", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateReminder creates one reminder.
func (c *Client) CreateReminder(ctx context.Context, in common.CreateReminderRequest) (domain.Reminder, error) {
	var out domain.Reminder
	err := c.do(ctx, http.MethodPost, "/reminders", nil, in, &out)
	return out, err
}

// CompleteReminder marks one reminder done.
func (c *Client) CompleteReminder(ctx context.Context, reminderID string) (domain.Reminder, error) {
	var out domain.Reminder
	err := c.do(ctx, http.MethodPost, "/reminders/"+url.PathEscape(reminderID)+"/complete", nil, nil, &out)
	return out, err
}

// Dashboard fetches the requested dashboard fields.
func (c *Client) Dashboard(ctx context.Context, only []string) (app.DashboardPage, error) {
	var out app.DashboardPage
	err := c.do(ctx, http.MethodGet, "/dashboard", onlyQuery(only), nil, &out)
	return out, err
}

// SavePreferences stores the caller's preference and returns the reloaded fields.
func (c *Client) SavePreferences(ctx context.Context, in common.SavePreferenceRequest, only []string) (app.DashboardPage, error) {
	var out app.DashboardPage
	err := c.do(ctx, http.MethodPut, "/dashboard/preferences", onlyQuery(only), in, &out)
	return out, err
}

// SaveDashboardPreference stores one preference and discards the reloaded page.
func (c *Client) SaveDashboardPreference(ctx context.Context, pref domain.DashboardPreference, only []string) error {
	_, err := c.SavePreferences(ctx, common.SavePreferenceRequest{
		Layout:    pref.Layout,
		DateRange: pref.DateRange,
	}, only)
	return err
}

// itemsEnvelope matches the server's list response shape.
type itemsEnvelope[T any] struct {
	Items []T `json:"items"`
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c == nil || c.baseURL == nil {
		return fmt.Errorf("http client is not configured: %w", common.ErrUnavailable)
	}
	target := c.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userHeader, c.userID)
	}
	if c.userName != "" {
		req.Header.Set(userNameHeader, c.userName)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(common.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// decodeError converts one failed response into an *Error.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	var envelope struct {
		Error Error `json:"error"`
	}
	apiErr := &Error{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		*apiErr = envelope.Error
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	apiErr.Code = codeForStatus(resp.StatusCode)
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

// codeForStatus picks an error code when the body carries no envelope.
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_request"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}

func onlyQuery(only []string) url.Values {
	query := url.Values{}
	if fields := joinNonEmpty(only); fields != "" {
		query.Set("only", fields)
	}
	return query
}

func joinNonEmpty(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ",")
}
