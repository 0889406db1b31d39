// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/kundkoll/internal/adapters/server/common"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the kundkoll tools.
func NewHandler(cfg Config, service common.Service) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("mcp service is required: %w", common.ErrUnavailable)
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerClientTools(mcpSrv, service)
	registerTimelineTool(mcpSrv, service)
	registerActivityTools(mcpSrv, service)
	registerDashboardTool(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "kundkoll"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// withToolActor attaches the optional user_id argument as the acting user.
func withToolActor(ctx context.Context, req mcp.CallToolRequest) context.Context {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return ctx
	}
	return app.WithActor(ctx, app.Actor{UserID: userID})
}

// jsonResult encodes one tool payload as structured JSON content.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// registerClientTools registers the `kundkoll.list_clients` tool.
func registerClientTools(srv *mcpserver.MCPServer, service common.ClientService) {
	srv.AddTool(
		mcp.NewTool(
			"kundkoll.list_clients",
			mcp.WithDescription("List clients ordered by name."),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived clients")),
		),
		listClientsTool(service),
	)
}

func listClientsTool(service common.ClientService) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clients, err := service.ListClients(ctx, req.GetBool("include_archived", false))
		if err != nil {
			return toolResultFromError(err), nil
		}
		return jsonResult("list_clients", map[string]any{"items": clients})
	}
}

// registerTimelineTool registers the `kundkoll.task_timeline` tool.
func registerTimelineTool(srv *mcpserver.MCPServer, service common.ProjectService) {
	srv.AddTool(
		mcp.NewTool(
			"kundkoll.task_timeline",
			mcp.WithDescription("Return the flattened task timeline for one project."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
			mcp.WithString("collapsed", mcp.Description("Comma-separated task ids whose children are hidden")),
		),
		taskTimelineTool(service),
	)
}

func taskTimelineTool(service common.ProjectService) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID, err := req.RequireString("project_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var collapsed []string
		if raw := strings.TrimSpace(req.GetString("collapsed", "")); raw != "" {
			collapsed = []string{raw}
		}
		rows, err := service.TaskTimeline(ctx, projectID, collapsed)
		if err != nil {
			return toolResultFromError(err), nil
		}
		return jsonResult("task_timeline", map[string]any{"items": rows})
	}
}

// registerActivityTools registers the client activity read and write tools.
func registerActivityTools(srv *mcpserver.MCPServer, service common.ActivityService) {
	srv.AddTool(
		mcp.NewTool(
			"kundkoll.client_activity",
			mcp.WithDescription("Return one client's activity timeline merged with optional pending changes."),
			mcp.WithString("client_id", mcp.Required(), mcp.Description("Client identifier")),
			mcp.WithString("pending", mcp.Description("JSON array of pending changes to overlay")),
			mcp.WithString("user_id", mcp.Description("Acting user id for synthesized entries")),
		),
		clientActivityTool(service),
	)
	srv.AddTool(
		mcp.NewTool(
			"kundkoll.log_activity",
			mcp.WithDescription("Record one activity on a client's timeline."),
			mcp.WithString("client_id", mcp.Required(), mcp.Description("Client identifier")),
			mcp.WithString("summary", mcp.Required(), mcp.Description("Short summary")),
			mcp.WithString("type", mcp.Description("Activity type"), mcp.Enum(activityTypeNames()...)),
			mcp.WithString("user_id", mcp.Description("Acting user id")),
		),
		logActivityTool(service),
	)
}

func clientActivityTool(service common.ActivityService) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID, err := req.RequireString("client_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var pending []domain.ActivityChange
		if raw := strings.TrimSpace(req.GetString("pending", "")); raw != "" {
			if err := json.Unmarshal([]byte(raw), &pending); err != nil {
				return toolResultFromError(fmt.Errorf("decode pending: %w", errors.Join(common.ErrInvalidRequest, err))), nil
			}
		}
		view, err := service.ClientActivityView(withToolActor(ctx, req), clientID, pending)
		if err != nil {
			return toolResultFromError(err), nil
		}
		return jsonResult("client_activity", map[string]any{"items": view})
	}
}

func logActivityTool(service common.ActivityService) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clientID, err := req.RequireString("client_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		summary, err := req.RequireString("summary")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, err := service.LogActivity(withToolActor(ctx, req), clientID, common.LogActivityRequest{
			Type:    domain.ActivityType(req.GetString("type", "")),
			Summary: summary,
		})
		if err != nil {
			return toolResultFromError(err), nil
		}
		return jsonResult("log_activity", out)
	}
}

// registerDashboardTool registers the `kundkoll.dashboard` tool.
func registerDashboardTool(srv *mcpserver.MCPServer, service common.DashboardService) {
	srv.AddTool(
		mcp.NewTool(
			"kundkoll.dashboard",
			mcp.WithDescription("Return dashboard fields for one user. Omit only to return every field."),
			mcp.WithString("only", mcp.Description("Comma-separated fields: summary, metrics, preferences, currentDateRange, reminders, recentActivities")),
			mcp.WithString("user_id", mcp.Description("User whose preferences select the date range")),
		),
		dashboardTool(service),
	)
}

func dashboardTool(service common.DashboardService) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var only []string
		if raw := strings.TrimSpace(req.GetString("only", "")); raw != "" {
			only = []string{raw}
		}
		page, err := service.Dashboard(withToolActor(ctx, req), only)
		if err != nil {
			return toolResultFromError(err), nil
		}
		return jsonResult("dashboard", page)
	}
}

func activityTypeNames() []string {
	types := domain.ActivityTypes()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
