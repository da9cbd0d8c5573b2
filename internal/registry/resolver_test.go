package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/svarun115/assistant-gateway/internal/store"
)

type fakeRegistryStore struct {
	templates map[string]store.AgentTemplate
	instances map[string]store.AgentInstance // key "user/agent"
}

func newFakeRegistryStore() *fakeRegistryStore {
	return &fakeRegistryStore{
		templates: map[string]store.AgentTemplate{},
		instances: map[string]store.AgentInstance{},
	}
}

func key(userID, agentName string) string { return userID + "/" + agentName }

func (f *fakeRegistryStore) GetTemplate(ctx context.Context, name string) (*store.AgentTemplate, error) {
	t, ok := f.templates[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeRegistryStore) UpsertTemplate(ctx context.Context, tmpl store.AgentTemplate) (bool, error) {
	existing, existed := f.templates[tmpl.Name]
	if existed {
		tmpl.Version = existing.Version + 1
		f.templates[tmpl.Name] = tmpl
		return false, f.FlagUpgradeAvailable(ctx, tmpl.Name)
	}
	tmpl.Version = 1
	f.templates[tmpl.Name] = tmpl
	return true, nil
}

func (f *fakeRegistryStore) FlagUpgradeAvailable(ctx context.Context, templateName string) error {
	for k, inst := range f.instances {
		if inst.TemplateName == templateName {
			inst.UpgradeAvailable = true
			f.instances[k] = inst
		}
	}
	return nil
}

func (f *fakeRegistryStore) GetInstance(ctx context.Context, userID, agentName string) (*store.AgentInstance, error) {
	inst, ok := f.instances[key(userID, agentName)]
	if !ok || !inst.IsActive {
		return nil, nil
	}
	return &inst, nil
}

func (f *fakeRegistryStore) CreateInstance(ctx context.Context, inst store.AgentInstance) error {
	k := key(inst.UserID, inst.AgentName)
	if _, exists := f.instances[k]; exists {
		return nil
	}
	inst.IsActive = true
	f.instances[k] = inst
	return nil
}

func (f *fakeRegistryStore) UpsertUserDefinedInstance(ctx context.Context, inst store.AgentInstance) error {
	inst.IsActive = true
	f.instances[key(inst.UserID, inst.AgentName)] = inst
	return nil
}

func (f *fakeRegistryStore) UpdateInstanceFile(ctx context.Context, userID, agentName, file, content string) error {
	k := key(userID, agentName)
	inst, ok := f.instances[k]
	if !ok {
		return errors.New("not found")
	}
	switch file {
	case "agent_md":
		inst.AgentMD = content
	case "tools_md":
		inst.ToolsMD = content
	case "bootstrap_md":
		inst.BootstrapMD = content
	case "heartbeat_md":
		inst.HeartbeatMD = content
	case "soul_md":
		inst.SoulMD = content
	}
	inst.CustomizedFiles = appendUnique(inst.CustomizedFiles, file)
	f.instances[k] = inst
	return nil
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}

func (f *fakeRegistryStore) UpdateSoul(ctx context.Context, userID, agentName, soulMD string) error {
	k := key(userID, agentName)
	inst, ok := f.instances[k]
	if !ok {
		return errors.New("not found")
	}
	inst.SoulMD = soulMD
	f.instances[k] = inst
	return nil
}

func (f *fakeRegistryStore) DeactivateInstance(ctx context.Context, userID, agentName string) (bool, error) {
	k := key(userID, agentName)
	inst, ok := f.instances[k]
	if !ok || !inst.IsActive {
		return false, nil
	}
	inst.IsActive = false
	f.instances[k] = inst
	return true, nil
}

func (f *fakeRegistryStore) ListInstances(ctx context.Context, userID string) ([]store.AgentInstance, error) {
	var out []store.AgentInstance
	for _, inst := range f.instances {
		if inst.UserID == userID && inst.IsActive {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeRegistryStore) ListTemplates(ctx context.Context) ([]store.AgentTemplate, error) {
	var out []store.AgentTemplate
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func TestResolveCreatesInstanceFromTemplateOnFirstUse(t *testing.T) {
	fs := newFakeRegistryStore()
	fs.templates["financial-advisor"] = store.AgentTemplate{
		Name: "financial-advisor", AgentMD: "You are a financial advisor.", Version: 3,
	}
	r := NewResolver(fs, "/nonexistent/system-agents")

	def, err := r.Resolve(context.Background(), "financial-advisor", "varun", ProfilePersonal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Source != "from_template" || def.TemplateVersion != 3 {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if _, ok := fs.instances[key("varun", "financial-advisor")]; !ok {
		t.Fatal("expected instance to be created")
	}

	// Second resolve must reuse the instance, not create a new one.
	def2, err := r.Resolve(context.Background(), "financial-advisor", "varun", ProfilePersonal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def2.Source != "from_template" {
		t.Fatalf("expected existing instance to be reused, got %+v", def2)
	}
}

func TestResolveReturnsNotFoundForUnknownAgent(t *testing.T) {
	r := NewResolver(newFakeRegistryStore(), "/nonexistent/system-agents")
	_, err := r.Resolve(context.Background(), "ghost", "varun", ProfilePersonal)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSystemAgentAccessAllowed(t *testing.T) {
	cases := []struct {
		access  []string
		profile string
		want    bool
	}{
		{[]string{"cos_internal"}, ProfileCosInternal, true},
		{[]string{"cos_internal"}, ProfilePersonal, false},
		{[]string{"admin_direct"}, ProfileAdmin, true},
		{[]string{"admin_direct"}, ProfileCosInternal, false},
		{[]string{"cos_internal"}, ProfileAdmin, true},
		{[]string{}, ProfileAdmin, false},
	}
	for _, c := range cases {
		if got := systemAgentAccessAllowed(c.access, c.profile); got != c.want {
			t.Errorf("access=%v profile=%s: got %v, want %v", c.access, c.profile, got, c.want)
		}
	}
}

func TestDefinitionAllowedServersEmptyMeansUnrestricted(t *testing.T) {
	d := &Definition{ToolsMD: "---\nallowed_servers: []\n---\n"}
	if got := d.AllowedServers(); got != nil {
		t.Fatalf("expected nil (unrestricted), got %v", got)
	}

	d2 := &Definition{ToolsMD: "---\nallowed_servers: [journal-db, web-search]\n---\n"}
	got := d2.AllowedServers()
	if len(got) != 2 || got[0] != "journal-db" || got[1] != "web-search" {
		t.Fatalf("unexpected allowed servers: %v", got)
	}
}

func TestDefinitionSchedulesParsing(t *testing.T) {
	d := &Definition{HeartbeatMD: "---\nschedules:\n  - name: daily-check\n    cron: \"30 14 * * *\"\n    task: \"Check reading log\"\n---\n"}
	schedules := d.Schedules()
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if schedules[0].Name != "daily-check" || schedules[0].Cron != "30 14 * * *" || schedules[0].Skill != "Check reading log" {
		t.Fatalf("unexpected schedule: %+v", schedules[0])
	}
}
