package store

import (
	"context"
	"time"
)

// CredentialStore persists encrypted per-user credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID, service string) (*UserCredential, error)
	Put(ctx context.Context, cred UserCredential) error
	Delete(ctx context.Context, userID, service string) (bool, error)
	ListServices(ctx context.Context, userID string) ([]string, error)
}

// RegistryStore persists agent templates and per-user instances.
type RegistryStore interface {
	GetTemplate(ctx context.Context, name string) (*AgentTemplate, error)
	UpsertTemplate(ctx context.Context, tmpl AgentTemplate) (created bool, err error)
	FlagUpgradeAvailable(ctx context.Context, templateName string) error

	GetInstance(ctx context.Context, userID, agentName string) (*AgentInstance, error)
	CreateInstance(ctx context.Context, inst AgentInstance) error
	UpsertUserDefinedInstance(ctx context.Context, inst AgentInstance) error
	UpdateInstanceFile(ctx context.Context, userID, agentName, file, content string) error
	UpdateSoul(ctx context.Context, userID, agentName, soulMD string) error
	DeactivateInstance(ctx context.Context, userID, agentName string) (bool, error)
	ListInstances(ctx context.Context, userID string) ([]AgentInstance, error)
	ListTemplates(ctx context.Context) ([]AgentTemplate, error)
}

// ScheduleStore persists the cron schedule table.
type ScheduleStore interface {
	ListDue(ctx context.Context) ([]ScheduleEntry, error)
	Advance(ctx context.Context, id string, nextRun, lastRun time.Time) error
	Create(ctx context.Context, entry ScheduleEntry) (string, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	FindActiveByAgent(ctx context.Context, userID, agentName string) (*ScheduleEntry, error)
	UpdateFromHeartbeat(ctx context.Context, id, cron string, nextRun time.Time, config map[string]any) error
	List(ctx context.Context, userID string) ([]ScheduleEntry, error)
}

// ArtifactStore persists agent output.
type ArtifactStore interface {
	Write(ctx context.Context, a Artifact) (string, error)
	Get(ctx context.Context, id string) (*Artifact, error)
	List(ctx context.Context, userID, artifactType string, limit int) ([]Artifact, error)
}

// NotificationStore persists notification delivery records.
type NotificationStore interface {
	Post(ctx context.Context, n Notification) (string, error)
	GetUnread(ctx context.Context, userID string, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, ids []string) (int, error)
}

// ThreadStore persists foreground-agent thread metadata.
type ThreadStore interface {
	Create(ctx context.Context, t ThreadRecord) error
	Get(ctx context.Context, id string) (*ThreadRecord, error)
}

// Stores aggregates every store this gateway depends on.
type Stores struct {
	Credentials   CredentialStore
	Registry      RegistryStore
	Schedules     ScheduleStore
	Artifacts     ArtifactStore
	Notifications NotificationStore
	Threads       ThreadStore
}
