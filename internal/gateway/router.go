package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/svarun115/assistant-gateway/internal/spawner"
	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

// MethodRouter dispatches an incoming Request to the handler
// registered for its Method, scoped to the calling Client's user_id.
type MethodRouter struct {
	server *Server
}

func NewMethodRouter(s *Server) *MethodRouter {
	return &MethodRouter{server: s}
}

// Dispatch runs one RPC call and always returns a Response — handler
// errors are converted to an error Response rather than propagated, so
// one bad call never drops the connection.
func (m *MethodRouter) Dispatch(ctx context.Context, c *Client, req protocol.Request) protocol.Response {
	if m.server.rateLimiter.Enabled() && !m.server.rateLimiter.Allow(c.userID) {
		return protocol.NewErrorResponse(req.ID, "rate_limited", "too many requests")
	}

	handler, ok := methodHandlers[req.Method]
	if !ok {
		return protocol.NewErrorResponse(req.ID, "unknown_method", fmt.Sprintf("unknown method %q", req.Method))
	}

	result, err := handler(ctx, m.server, c, req.Params)
	if err != nil {
		slog.Warn("gateway.rpc_failed", "method", req.Method, "user", c.userID, "error", err)
		return protocol.NewErrorResponse(req.ID, "handler_error", err.Error())
	}
	return protocol.NewResultResponse(req.ID, result)
}

type methodHandler func(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error)

var methodHandlers = map[string]methodHandler{
	protocol.MethodHealth:              handleHealth,
	protocol.MethodAgentsList:          handleAgentsList,
	protocol.MethodAgentRun:            handleAgentRun,
	protocol.MethodAgentWait:           handleAgentWait,
	protocol.MethodCronList:            handleCronList,
	protocol.MethodCronCreate:          handleCronCreate,
	protocol.MethodCronDelete:          handleCronDelete,
	protocol.MethodCronRun:             handleCronRun,
	protocol.MethodArtifactsList:       handleArtifactsList,
	protocol.MethodArtifactsGet:        handleArtifactsGet,
	protocol.MethodNotificationsUnread: handleNotificationsUnread,
	protocol.MethodNotificationsRead:   handleNotificationsRead,
}

func handleHealth(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	return map[string]any{"status": "ok", "protocol": protocol.ProtocolVersion}, nil
}

func handleAgentsList(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("registry not configured")
	}
	return s.resolver.ListForUser(ctx, c.userID)
}

type agentRunParams struct {
	AgentName string         `json:"agent_name"`
	Skill     string         `json:"skill"`
	Config    map[string]any `json:"config"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
}

func handleAgentRun(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p agentRunParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.AgentName == "" {
		p.AgentName = p.Skill
	}
	runID := s.spawner.SpawnBackground(ctx, spawner.BackgroundOptions{
		UserID: c.userID, AgentName: p.AgentName, Skill: p.Skill,
		Config: p.Config, Provider: p.Provider, Model: p.Model,
	})
	return map[string]string{"run_id": runID}, nil
}

type agentWaitParams struct {
	Skill    string         `json:"skill"`
	Task     string         `json:"task"`
	Context  map[string]any `json:"context"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
}

func handleAgentWait(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p agentWaitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	result, err := s.spawner.InvokeTask(ctx, spawner.TaskOptions{
		UserID: c.userID, Skill: p.Skill, Task: p.Task, Context: p.Context,
		Provider: p.Provider, Model: p.Model,
	})
	if err != nil {
		return nil, err
	}
	return map[string]string{"result": result}, nil
}

func handleCronList(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	return s.scheduler.ListSchedules(ctx, c.userID)
}

type cronCreateParams struct {
	AgentName string         `json:"agent_name"`
	Skill     string         `json:"skill"`
	Cron      string         `json:"cron"`
	Config    map[string]any `json:"config"`
}

func handleCronCreate(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p cronCreateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	id, err := s.scheduler.Schedule(ctx, c.userID, p.AgentName, p.Skill, p.Cron, p.Config)
	if err != nil {
		return nil, err
	}
	return map[string]string{"schedule_id": id}, nil
}

type scheduleIDParams struct {
	ScheduleID string `json:"schedule_id"`
}

func handleCronDelete(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p scheduleIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	ok, err := s.scheduler.Unschedule(ctx, p.ScheduleID)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": ok}, nil
}

func handleCronRun(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p scheduleIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if err := s.scheduler.RunNow(ctx, c.userID, p.ScheduleID); err != nil {
		return nil, err
	}
	return map[string]bool{"fired": true}, nil
}

type artifactsListParams struct {
	Type  string `json:"type"`
	Limit int    `json:"limit"`
}

func handleArtifactsList(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p artifactsListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	return s.artifacts.List(ctx, c.userID, p.Type, p.Limit)
}

type artifactGetParams struct {
	ID string `json:"id"`
}

func handleArtifactsGet(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p artifactGetParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.artifacts.Get(ctx, p.ID)
}

type notificationsUnreadParams struct {
	Limit int `json:"limit"`
}

func handleNotificationsUnread(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p notificationsUnreadParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
	}
	return s.notifier.GetUnread(ctx, c.userID, p.Limit)
}

type notificationsReadParams struct {
	IDs []string `json:"ids"`
}

func handleNotificationsRead(ctx context.Context, s *Server, c *Client, params json.RawMessage) (any, error) {
	var p notificationsReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	count, err := s.notifier.MarkRead(ctx, p.IDs)
	if err != nil {
		return nil, err
	}
	return map[string]int{"marked": count}, nil
}
