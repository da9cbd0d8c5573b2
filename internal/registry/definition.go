// Package registry implements the Agent Registry component: a
// filesystem-seeded, per-user-mutable catalog of agent definitions,
// plus a small set of service-level system agents that are read
// straight off disk and gated by caller profile.
package registry

import (
	"strings"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// Caller profiles recognized by system-agent access control.
const (
	ProfilePersonal    = "personal"
	ProfileCosInternal = "cos_internal"
	ProfileAdmin       = "admin"
)

// Definition is a fully resolved agent definition for a specific user
// (or, for system agents, for a specific caller).
type Definition struct {
	AgentName        string
	UserID           string
	Source           string // from_template | user_defined | system
	AgentMD          string
	ToolsMD          string
	BootstrapMD      string
	HeartbeatMD      string
	SoulMD           string
	CustomizedFiles  []string
	TemplateVersion  int
	UpgradeAvailable bool
}

// AllowedServers parses the allowed_servers list out of ToolsMD's YAML
// frontmatter. A nil result (no frontmatter, empty list, or missing
// key) means unrestricted access to every connected bridge server.
func (d *Definition) AllowedServers() []string {
	if d.ToolsMD == "" {
		return nil
	}
	data := parseFrontmatter(d.ToolsMD)
	servers, _ := data["allowed_servers"].([]any)
	if len(servers) == 0 {
		return nil
	}
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if str, ok := s.(string); ok {
			out = append(out, str)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ScheduleDecl is one schedule declaration parsed from HeartbeatMD.
type ScheduleDecl struct {
	Name   string
	Cron   string
	Skill  string
	Config map[string]any
}

// Schedules parses the schedules list out of HeartbeatMD's YAML
// frontmatter.
func (d *Definition) Schedules() []ScheduleDecl {
	if d.HeartbeatMD == "" {
		return nil
	}
	data := parseFrontmatter(d.HeartbeatMD)
	raw, _ := data["schedules"].([]any)
	out := make([]ScheduleDecl, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		decl := ScheduleDecl{Config: map[string]any{}}
		if v, ok := m["name"].(string); ok {
			decl.Name = v
		}
		if v, ok := m["cron"].(string); ok {
			decl.Cron = v
		}
		if v, ok := m["task"].(string); ok {
			decl.Skill = v
		} else if v, ok := m["skill"].(string); ok {
			decl.Skill = v
		}
		for k, v := range m {
			if k == "name" || k == "cron" || k == "task" || k == "skill" {
				continue
			}
			decl.Config[k] = v
		}
		out = append(out, decl)
	}
	return out
}

// TriggerDecl is one proactive-trigger declaration parsed from
// HeartbeatMD.
type TriggerDecl struct {
	Name      string
	Condition string
}

// Triggers parses the triggers list out of HeartbeatMD's YAML
// frontmatter.
func (d *Definition) Triggers() []TriggerDecl {
	if d.HeartbeatMD == "" {
		return nil
	}
	data := parseFrontmatter(d.HeartbeatMD)
	raw, _ := data["triggers"].([]any)
	out := make([]TriggerDecl, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var t TriggerDecl
		if v, ok := m["name"].(string); ok {
			t.Name = v
		}
		if v, ok := m["condition"].(string); ok {
			t.Condition = v
		}
		out = append(out, t)
	}
	return out
}

// SystemPrompt builds the full system prompt: identity plus, for
// agents with persistent memory, the soul section appended below a
// divider.
func (d *Definition) SystemPrompt() string {
	if strings.TrimSpace(d.SoulMD) == "" {
		return d.AgentMD
	}
	return d.AgentMD + "\n\n---\n## Your Memory (past sessions)\n\n" + d.SoulMD
}

func definitionFromInstance(inst store.AgentInstance) *Definition {
	return &Definition{
		AgentName:        inst.AgentName,
		UserID:           inst.UserID,
		Source:           inst.Source,
		AgentMD:          inst.AgentMD,
		ToolsMD:          inst.ToolsMD,
		BootstrapMD:      inst.BootstrapMD,
		HeartbeatMD:      inst.HeartbeatMD,
		SoulMD:           inst.SoulMD,
		CustomizedFiles:  inst.CustomizedFiles,
		TemplateVersion:  inst.TemplateVersion,
		UpgradeAvailable: inst.UpgradeAvailable,
	}
}
