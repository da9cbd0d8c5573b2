// Package store defines the persisted entities the gateway is built
// around and the narrow per-concern interfaces each component depends
// on, following the one-interface-per-store convention used
// throughout the reference codebase this service grew out of.
package store

import "time"

// AgentTemplate is a shared, versioned agent definition seeded from
// the agents/ directory on disk.
type AgentTemplate struct {
	Name         string
	Description  string
	AgentMD      string
	ToolsMD      string
	BootstrapMD  string
	HeartbeatMD  string
	ContentHash  string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentInstance is a per-user, mutable copy of a template (or a
// user-authored definition with no backing template).
type AgentInstance struct {
	UserID           string
	AgentName        string
	TemplateName     string // empty for user_defined/imported instances with no backing template
	Source           string // from_template | user_defined | imported
	AgentMD          string
	ToolsMD          string
	BootstrapMD      string
	HeartbeatMD      string
	SoulMD           string
	CustomizedFiles  []string
	TemplateVersion  int
	UpgradeAvailable bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SystemAgent is a service-level agent read straight from the
// system-agents/ directory; it has no per-user instance.
type SystemAgent struct {
	Name        string
	AgentMD     string
	AccessRules []string
}

// UserCredential is one (user_id, service) row in the credential
// vault. TokenData is the AES-256-GCM-sealed JSON blob; EncryptionKeyID
// names which vault key encrypted it.
type UserCredential struct {
	UserID          string
	Service         string
	TokenData       string // ciphertext, "enc:"-prefixed, or plaintext in dev mode
	EncryptionKeyID string
	Scopes          []string
	ExpiresAt       *time.Time
	Metadata        map[string]any
	UpdatedAt       time.Time
}

// ScheduleEntry is one row of the scheduler table.
type ScheduleEntry struct {
	ID        string
	UserID    string
	AgentName string
	Skill     string
	Cron      string
	NextRun   time.Time
	LastRun   *time.Time
	Config    map[string]any
	IsActive  bool
}

// Notification is a single delivery record for an agent's output.
type Notification struct {
	ID         string
	UserID     string
	FromAgent  string
	ToThreadID string
	Message    string
	Priority   string // urgent | normal | low
	ArtifactID string
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// Artifact is persisted agent output.
type Artifact struct {
	ID        string
	UserID    string
	AgentID   string
	Type      string
	Content   string
	Metadata  map[string]any
	IsDeleted bool
	CreatedAt time.Time
}

// ThreadRecord tracks a persistent foreground-agent conversation.
type ThreadRecord struct {
	ID           string
	UserID       string
	Title        string
	ModelProvider string
	ModelName    string
	CreatedAt    time.Time
}
