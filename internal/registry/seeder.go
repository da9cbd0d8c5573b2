package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// Seeder performs a one-way sync from an agents/ directory on disk
// into the agent_templates table. It never reads the table back out
// for runtime use — that's Resolver's job.
type Seeder struct {
	agentsDir string
	store     store.RegistryStore
}

func NewSeeder(agentsDir string, st store.RegistryStore) *Seeder {
	return &Seeder{agentsDir: agentsDir, store: st}
}

// Sync walks every immediate subdirectory of agentsDir, each one
// naming an agent, and upserts its AGENT.md/TOOLS.md/BOOTSTRAP.md/
// HEARTBEAT.md content into agent_templates. Returns a map of
// agent name -> "created"|"updated"|"unchanged"|"skipped"|"error".
func (s *Seeder) Sync(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(s.agentsDir)
	if os.IsNotExist(err) {
		slog.Warn("registry.seeder.agents_dir_missing", "dir", s.agentsDir)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	var created, updated int
	for _, name := range names {
		status, err := s.syncOne(ctx, name, filepath.Join(s.agentsDir, name))
		if err != nil {
			slog.Error("registry.seeder.sync_failed", "agent", name, "error", err)
			results[name] = "error"
			continue
		}
		results[name] = status
		switch status {
		case "created":
			created++
		case "updated":
			updated++
		}
		if status != "unchanged" {
			slog.Info("registry.seeder.synced", "agent", name, "status", status)
		}
	}
	slog.Info("registry.seeder.sync_done", "total", len(results), "created", created, "updated", updated)
	return results, nil
}

func (s *Seeder) syncOne(ctx context.Context, name, dir string) (string, error) {
	agentMD := readFileOrEmpty(filepath.Join(dir, "AGENT.md"))
	if agentMD == "" {
		agentMD = readFileOrEmpty(filepath.Join(dir, "SKILL.md"))
	}
	if agentMD == "" {
		return "skipped", nil
	}

	toolsMD := readFileOrEmpty(filepath.Join(dir, "TOOLS.md"))
	bootstrapMD := readFileOrEmpty(filepath.Join(dir, "BOOTSTRAP.md"))
	heartbeatMD := readFileOrEmpty(filepath.Join(dir, "HEARTBEAT.md"))

	tmpl := store.AgentTemplate{
		Name:        name,
		Description: extractDescription(agentMD),
		AgentMD:     agentMD,
		ToolsMD:     toolsMD,
		BootstrapMD: bootstrapMD,
		HeartbeatMD: heartbeatMD,
		ContentHash: contentHash(agentMD, toolsMD, bootstrapMD, heartbeatMD),
	}

	existing, err := s.store.GetTemplate(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil && existing.ContentHash == tmpl.ContentHash {
		return "unchanged", nil
	}

	created, err := s.store.UpsertTemplate(ctx, tmpl)
	if err != nil {
		return "", err
	}
	if created {
		return "created", nil
	}
	return "updated", nil
}

// SyncSkill imports a single Claude Code SKILL.md directory as an
// agent template under the given name (or the directory's own name).
func (s *Seeder) SyncSkill(ctx context.Context, skillDir, name string) (string, error) {
	if name == "" {
		name = filepath.Base(skillDir)
	}
	return s.syncOne(ctx, name, skillDir)
}

func contentHash(agentMD, toolsMD, bootstrapMD, heartbeatMD string) string {
	combined := strings.Join([]string{agentMD, toolsMD, bootstrapMD, heartbeatMD}, "\n")
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

func readFileOrEmpty(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

var descriptionRe = regexp.MustCompile(`(?m)^description:\s*(.+)$`)

// extractDescription pulls a "description:" frontmatter field, or
// falls back to the first non-empty, non-delimiter line of the file.
func extractDescription(agentMD string) string {
	if match := descriptionRe.FindStringSubmatch(parseFrontmatterRaw(agentMD)); match != nil {
		return strings.Trim(strings.TrimSpace(match[1]), `"'`)
	}
	for _, line := range strings.Split(agentMD, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

func parseFrontmatterRaw(content string) string {
	match := frontmatterRe.FindStringSubmatch(content)
	if match == nil {
		return ""
	}
	return match[1]
}
