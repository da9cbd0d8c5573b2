package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// ErrNotFound is returned when no instance, template, or system agent
// matches the requested name.
var ErrNotFound = errors.New("registry: agent not found")

// ErrAccessDenied is returned when a system agent exists but the
// caller's profile doesn't satisfy its access rules.
type ErrAccessDenied struct {
	AgentName string
	Access    []string
	Profile   string
}

func (e *ErrAccessDenied) Error() string {
	return fmt.Sprintf("registry: agent %q requires access %v, caller profile %q", e.AgentName, e.Access, e.Profile)
}

// Resolver resolves agent definitions for a caller, following the
// instance -> template -> system-agent precedence.
type Resolver struct {
	store           store.RegistryStore
	systemAgentsDir string
}

func NewResolver(st store.RegistryStore, systemAgentsDir string) *Resolver {
	return &Resolver{store: st, systemAgentsDir: systemAgentsDir}
}

// Resolve returns the Definition for agentName visible to userID.
// callerProfile gates system-agent access only; it is ignored for
// per-user instances and templates. A brand-new user asking for a
// name that only exists as a template gets a fresh instance copied
// from that template on first call.
func (r *Resolver) Resolve(ctx context.Context, agentName, userID, callerProfile string) (*Definition, error) {
	inst, err := r.store.GetInstance(ctx, userID, agentName)
	if err != nil {
		return nil, err
	}
	if inst != nil {
		return definitionFromInstance(*inst), nil
	}

	def, err := r.instantiateFromTemplate(ctx, agentName, userID)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return r.resolveSystemAgent(agentName, callerProfile)
}

func (r *Resolver) instantiateFromTemplate(ctx context.Context, agentName, userID string) (*Definition, error) {
	tmpl, err := r.store.GetTemplate(ctx, agentName)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrNotFound
	}

	inst := store.AgentInstance{
		UserID:          userID,
		AgentName:       agentName,
		TemplateName:    agentName,
		Source:          "from_template",
		AgentMD:         tmpl.AgentMD,
		ToolsMD:         tmpl.ToolsMD,
		BootstrapMD:     tmpl.BootstrapMD,
		HeartbeatMD:     tmpl.HeartbeatMD,
		TemplateVersion: tmpl.Version,
		IsActive:        true,
	}
	if err := r.store.CreateInstance(ctx, inst); err != nil {
		return nil, err
	}
	slog.Info("registry.instance_created", "agent", agentName, "user", userID, "template_version", tmpl.Version)

	return &Definition{
		AgentName:       agentName,
		UserID:          userID,
		Source:          "from_template",
		AgentMD:         tmpl.AgentMD,
		ToolsMD:         tmpl.ToolsMD,
		BootstrapMD:     tmpl.BootstrapMD,
		HeartbeatMD:     tmpl.HeartbeatMD,
		TemplateVersion: tmpl.Version,
	}, nil
}

// resolveSystemAgent loads a service-level agent straight from
// systemAgentsDir/<name>/AGENT.md. Access rules in its frontmatter
// gate which caller profiles may invoke it: a "cos_internal" entry
// admits cos_internal callers, "admin_direct" admits admin callers,
// and admins may additionally use any cos_internal agent. Regular
// ("personal") callers are never admitted.
func (r *Resolver) resolveSystemAgent(agentName, callerProfile string) (*Definition, error) {
	dir := filepath.Join(r.systemAgentsDir, agentName)
	agentMD := readFileOrEmpty(filepath.Join(dir, "AGENT.md"))
	if agentMD == "" {
		return nil, ErrNotFound
	}

	frontmatter := parseFrontmatter(agentMD)
	access := stringList(frontmatter["access"])

	if !systemAgentAccessAllowed(access, callerProfile) {
		return nil, &ErrAccessDenied{AgentName: agentName, Access: access, Profile: callerProfile}
	}

	toolsMD := readFileOrEmpty(filepath.Join(dir, "TOOLS.md"))
	bootstrapMD := readFileOrEmpty(filepath.Join(dir, "BOOTSTRAP.md"))

	if docIndex := buildDocIndex(filepath.Join(dir, "docs")); docIndex != "" {
		if bootstrapMD != "" {
			bootstrapMD = bootstrapMD + "\n\n---\n\n" + docIndex
		} else {
			bootstrapMD = docIndex
		}
	}

	slog.Debug("registry.system_agent_resolved", "agent", agentName, "caller_profile", callerProfile)

	return &Definition{
		AgentName:   agentName,
		UserID:      "__system__",
		Source:      "system",
		AgentMD:     agentMD,
		ToolsMD:     toolsMD,
		BootstrapMD: bootstrapMD,
	}, nil
}

func systemAgentAccessAllowed(access []string, callerProfile string) bool {
	has := func(rule string) bool {
		for _, a := range access {
			if a == rule {
				return true
			}
		}
		return false
	}
	switch callerProfile {
	case ProfileCosInternal:
		return has(ProfileCosInternal)
	case ProfileAdmin:
		return has("admin_direct") || has(ProfileCosInternal)
	default:
		return false
	}
}

func buildDocIndex(docsDir string) string {
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		content := readFileOrEmpty(filepath.Join(docsDir, name))
		if content == "" {
			continue
		}
		stem := strings.TrimSuffix(name, ".md")
		parts = append(parts, fmt.Sprintf("# Reference: %s\n\n%s", stem, strings.TrimSpace(content)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return nil
	}
}

// AppendSoul appends a dated memory entry to a user's agent soul_md.
// Callers pass an already-formatted "YYYY-MM-DD: entry" line; this
// method does not add a date itself.
func (r *Resolver) AppendSoul(ctx context.Context, agentName, userID, datedEntry string) error {
	inst, err := r.store.GetInstance(ctx, userID, agentName)
	if err != nil {
		return err
	}
	if inst == nil {
		return ErrNotFound
	}
	soul := inst.SoulMD
	if soul != "" {
		soul += "\n"
	}
	soul += datedEntry
	return r.store.UpdateSoul(ctx, userID, agentName, soul)
}

// UpdateFile overwrites one customizable file on a user's instance.
func (r *Resolver) UpdateFile(ctx context.Context, agentName, userID, file, content string) error {
	return r.store.UpdateInstanceFile(ctx, userID, agentName, file, content)
}

// CreateUserDefined registers (or overwrites) a user-authored agent
// with no backing template.
func (r *Resolver) CreateUserDefined(ctx context.Context, userID, agentName, agentMD, toolsMD, bootstrapMD, heartbeatMD string) error {
	return r.store.UpsertUserDefinedInstance(ctx, store.AgentInstance{
		UserID:      userID,
		AgentName:   agentName,
		Source:      "user_defined",
		AgentMD:     agentMD,
		ToolsMD:     toolsMD,
		BootstrapMD: bootstrapMD,
		HeartbeatMD: heartbeatMD,
	})
}

// Delete soft-deletes a user's agent instance.
func (r *Resolver) Delete(ctx context.Context, userID, agentName string) (bool, error) {
	return r.store.DeactivateInstance(ctx, userID, agentName)
}

// AgentSummary describes one entry in a user's agent listing.
type AgentSummary struct {
	Name             string
	Description      string
	Source           string
	HasInstance      bool
	UpgradeAvailable bool
}

// ListForUser lists every template available to a user plus every
// instance (including user-defined agents with no template).
func (r *Resolver) ListForUser(ctx context.Context, userID string) ([]AgentSummary, error) {
	instances, err := r.store.ListInstances(ctx, userID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]store.AgentInstance, len(instances))
	for _, inst := range instances {
		byName[inst.AgentName] = inst
	}

	templates, err := r.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}

	var out []AgentSummary
	seen := make(map[string]bool, len(templates))
	for _, tmpl := range templates {
		seen[tmpl.Name] = true
		if inst, ok := byName[tmpl.Name]; ok {
			out = append(out, AgentSummary{
				Name: tmpl.Name, Description: tmpl.Description, Source: inst.Source,
				HasInstance: true, UpgradeAvailable: inst.UpgradeAvailable,
			})
		} else {
			out = append(out, AgentSummary{
				Name: tmpl.Name, Description: tmpl.Description, Source: "template_available",
			})
		}
	}
	for _, inst := range instances {
		if seen[inst.AgentName] {
			continue
		}
		out = append(out, AgentSummary{
			Name: inst.AgentName, Description: "(user-defined)", Source: inst.Source, HasInstance: true,
		})
	}
	return out, nil
}
