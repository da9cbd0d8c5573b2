// Package spawner implements the Agent Spawner component: the three
// ways an agent invocation can run — an inline task the caller awaits,
// a fire-and-forget background run that reports back via artifact and
// notification, and a persistent foreground thread the user can switch
// into.
package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/svarun115/assistant-gateway/internal/artifacts"
	"github.com/svarun115/assistant-gateway/internal/bridge"
	"github.com/svarun115/assistant-gateway/internal/graphexec"
	"github.com/svarun115/assistant-gateway/internal/notify"
	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/threads"
)

// backgroundPreviewLen truncates a background agent's result before it
// goes into the completion notification text. Artifact listing
// previews (internal/artifacts) use a longer, independent limit —
// the two are not meant to match.
const backgroundPreviewLen = 120

// Spawner creates and runs task, background, and foreground agents.
type Spawner struct {
	graphs    graphexec.Factory
	bridges   *bridge.Manager
	threads   *threads.Manager
	notifier  *notify.Queue
	artifacts *artifacts.Store
	resolver  *registry.Resolver // may be nil in single-agent/no-DB deployments
}

func New(graphs graphexec.Factory, bridges *bridge.Manager, th *threads.Manager, notifier *notify.Queue, arts *artifacts.Store, resolver *registry.Resolver) *Spawner {
	return &Spawner{
		graphs:    graphs,
		bridges:   bridges,
		threads:   th,
		notifier:  notifier,
		artifacts: arts,
		resolver:  resolver,
	}
}

// TaskOptions configures an inline task invocation.
type TaskOptions struct {
	UserID   string
	Skill    string
	Task     string
	Context  map[string]any
	Provider string
	Model    string
}

// InvokeTask runs a task agent to completion and returns its text
// response. It always starts on a fresh, untracked ephemeral thread so
// task state can never leak into a caller's own conversation.
func (s *Spawner) InvokeTask(ctx context.Context, opts TaskOptions) (string, error) {
	b, err := s.bridges.GetBridge(ctx, opts.UserID)
	if err != nil {
		return "", fmt.Errorf("get bridge: %w", err)
	}

	graph, err := s.graphs(ctx, graphexec.Options{
		Provider: opts.Provider, Model: opts.Model, UserID: opts.UserID,
		Bridge: b, AllowOperatorKey: true,
	})
	if err != nil {
		return "", fmt.Errorf("build graph: %w", err)
	}

	threadID := ephemeralThreadID("task")
	message := buildTaskMessage(opts.Skill, opts.Task, opts.Context)

	slog.Info("spawner.task.start", "skill", opts.Skill, "user", opts.UserID, "thread", threadID)
	result, err := graph.Chat(ctx, message, threadID)
	if err != nil {
		return "", err
	}
	slog.Info("spawner.task.done", "thread", threadID, "result_len", len(result))
	return result, nil
}

// BackgroundOptions configures a fire-and-forget background run.
type BackgroundOptions struct {
	UserID    string
	AgentName string
	Skill     string
	Config    map[string]any
	Provider  string
	Model     string
}

// SpawnBackground starts a background agent as a detached goroutine
// and returns immediately with a run ID for logging/tracking. The run
// itself writes its result as an artifact and posts a notification —
// neither the run's result nor any error from it is ever returned to
// the caller, by design: this is fire-and-forget.
func (s *Spawner) SpawnBackground(ctx context.Context, opts BackgroundOptions) string {
	runID := "bg-" + uuid.New().String()[:12]
	go s.runBackground(context.WithoutCancel(ctx), runID, opts)
	slog.Info("spawner.background.spawned", "agent", opts.AgentName, "run_id", runID, "user", opts.UserID)
	return runID
}

func (s *Spawner) runBackground(ctx context.Context, runID string, opts BackgroundOptions) {
	slog.Info("spawner.background.start", "agent", opts.AgentName, "run_id", runID)

	result, err := s.execBackground(ctx, opts)
	if err != nil {
		slog.Error("spawner.background.failed", "agent", opts.AgentName, "run_id", runID, "error", err)
		if _, postErr := s.notifier.Post(ctx, opts.UserID, opts.AgentName, fmt.Sprintf("%s failed: %v", opts.AgentName, err), "urgent", ""); postErr != nil {
			slog.Error("spawner.background.failure_notify_failed", "agent", opts.AgentName, "run_id", runID, "error", postErr)
		}
		return
	}

	artifactID, err := s.artifacts.Write(ctx, opts.UserID, opts.AgentName, opts.Skill, result, map[string]any{
		"run_id": runID,
		"config": opts.Config,
	})
	if err != nil {
		slog.Error("spawner.background.artifact_write_failed", "agent", opts.AgentName, "run_id", runID, "error", err)
	}

	preview := result
	if len(preview) > backgroundPreviewLen {
		preview = preview[:backgroundPreviewLen] + "..."
	}
	if _, err := s.notifier.Post(ctx, opts.UserID, opts.AgentName, fmt.Sprintf("%s completed. %s", opts.AgentName, preview), "normal", artifactID); err != nil {
		slog.Error("spawner.background.notify_failed", "agent", opts.AgentName, "run_id", runID, "error", err)
	}

	slog.Info("spawner.background.done", "agent", opts.AgentName, "run_id", runID, "artifact", artifactID)
}

func (s *Spawner) execBackground(ctx context.Context, opts BackgroundOptions) (string, error) {
	b, err := s.bridges.GetBridge(ctx, opts.UserID)
	if err != nil {
		return "", fmt.Errorf("get bridge: %w", err)
	}
	graph, err := s.graphs(ctx, graphexec.Options{
		Provider: opts.Provider, Model: opts.Model, UserID: opts.UserID,
		Bridge: b, AllowOperatorKey: true,
	})
	if err != nil {
		return "", fmt.Errorf("build graph: %w", err)
	}

	threadID := ephemeralThreadID("bg")
	task := opts.Config["task"]
	taskStr, _ := task.(string)
	if taskStr == "" {
		taskStr = fmt.Sprintf("Run %s skill and produce a summary.", opts.AgentName)
	}
	if len(opts.Config) > 0 {
		rest := make(map[string]any, len(opts.Config))
		for k, v := range opts.Config {
			if k != "task" {
				rest[k] = v
			}
		}
		if len(rest) > 0 {
			if b, err := json.MarshalIndent(rest, "", "  "); err == nil {
				taskStr += "\n\nConfig:\n" + string(b)
			}
		}
	}

	message := prefixWithSkill(opts.Skill, taskStr)
	return graph.Chat(ctx, message, threadID)
}

// ForegroundOptions configures a persistent foreground thread.
type ForegroundOptions struct {
	UserID        string
	Skill         string
	Title         string
	PreTask       string
	Provider      string
	Model         string
	CallerProfile string
}

// SpawnForeground creates a tracked, persistent thread the user can
// switch into, optionally pre-warming it in the background with a
// context message (explicit PreTask, else the agent's BOOTSTRAP.md if
// one resolves). Returns the new thread ID immediately; pre-warming,
// if any, runs asynchronously and its failure is only logged.
func (s *Spawner) SpawnForeground(ctx context.Context, opts ForegroundOptions) (string, error) {
	preTask := opts.PreTask
	if preTask == "" && s.resolver != nil {
		if def, err := s.resolver.Resolve(ctx, opts.Skill, opts.UserID, opts.CallerProfile); err == nil && def.BootstrapMD != "" {
			preTask = def.BootstrapMD
		}
	}

	provider := opts.Provider
	if provider == "" {
		provider = "claude"
	}
	model := opts.Model
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	title := opts.Title
	if title == "" {
		title = threads.TitleFromSkill(opts.Skill)
	}

	threadID, err := s.threads.Create(ctx, opts.UserID, title, provider, model)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	slog.Info("spawner.foreground.created", "skill", opts.Skill, "thread", threadID, "user", opts.UserID)

	if preTask != "" {
		go s.prewarmForeground(context.WithoutCancel(ctx), threadID, opts.UserID, opts.Skill, preTask, provider, model)
	}

	return threadID, nil
}

func (s *Spawner) prewarmForeground(ctx context.Context, threadID, userID, skill, preTask, provider, model string) {
	b, err := s.bridges.GetBridge(ctx, userID)
	if err != nil {
		slog.Error("spawner.foreground.prewarm_failed", "thread", threadID, "error", err)
		return
	}
	graph, err := s.graphs(ctx, graphexec.Options{
		Provider: provider, Model: model, UserID: userID, Bridge: b, AllowOperatorKey: true,
	})
	if err != nil {
		slog.Error("spawner.foreground.prewarm_failed", "thread", threadID, "error", err)
		return
	}
	message := prefixWithSkill(skill, preTask)
	if _, err := graph.Chat(ctx, message, threadID); err != nil {
		slog.Error("spawner.foreground.prewarm_failed", "thread", threadID, "error", err)
		return
	}
	slog.Info("spawner.foreground.prewarm_done", "thread", threadID)
}

func ephemeralThreadID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:12]
}

// prefixWithSkill injects "/{skill} " so the skill router picks the
// right skill, unless message is already a slash command.
func prefixWithSkill(skill, message string) string {
	if strings.HasPrefix(message, "/") {
		return message
	}
	return fmt.Sprintf("/%s %s", skill, message)
}

func buildTaskMessage(skill, task string, ctxData map[string]any) string {
	message := task
	if len(ctxData) > 0 {
		if b, err := json.MarshalIndent(ctxData, "", "  "); err == nil {
			message = fmt.Sprintf("%s\n\nContext:\n%s", task, string(b))
		}
	}
	return prefixWithSkill(skill, message)
}
