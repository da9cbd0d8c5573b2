package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/svarun115/assistant-gateway/internal/artifacts"
	"github.com/svarun115/assistant-gateway/internal/notify"
	"github.com/svarun115/assistant-gateway/internal/registry"
	"github.com/svarun115/assistant-gateway/internal/scheduler"
	"github.com/svarun115/assistant-gateway/internal/store"
	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

type fakeRegistryStore struct {
	instances []store.AgentInstance
	templates []store.AgentTemplate
}

func (f *fakeRegistryStore) GetTemplate(ctx context.Context, name string) (*store.AgentTemplate, error) {
	return nil, nil
}
func (f *fakeRegistryStore) UpsertTemplate(ctx context.Context, tmpl store.AgentTemplate) (bool, error) {
	return false, nil
}
func (f *fakeRegistryStore) FlagUpgradeAvailable(ctx context.Context, templateName string) error {
	return nil
}
func (f *fakeRegistryStore) GetInstance(ctx context.Context, userID, agentName string) (*store.AgentInstance, error) {
	return nil, nil
}
func (f *fakeRegistryStore) CreateInstance(ctx context.Context, inst store.AgentInstance) error {
	return nil
}
func (f *fakeRegistryStore) UpsertUserDefinedInstance(ctx context.Context, inst store.AgentInstance) error {
	return nil
}
func (f *fakeRegistryStore) UpdateInstanceFile(ctx context.Context, userID, agentName, file, content string) error {
	return nil
}
func (f *fakeRegistryStore) UpdateSoul(ctx context.Context, userID, agentName, soulMD string) error {
	return nil
}
func (f *fakeRegistryStore) DeactivateInstance(ctx context.Context, userID, agentName string) (bool, error) {
	return false, nil
}
func (f *fakeRegistryStore) ListInstances(ctx context.Context, userID string) ([]store.AgentInstance, error) {
	return f.instances, nil
}
func (f *fakeRegistryStore) ListTemplates(ctx context.Context) ([]store.AgentTemplate, error) {
	return f.templates, nil
}

type fakeScheduleStore struct {
	entries map[string]store.ScheduleEntry
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{entries: map[string]store.ScheduleEntry{}}
}
func (f *fakeScheduleStore) ListDue(ctx context.Context) ([]store.ScheduleEntry, error) {
	return nil, nil
}
func (f *fakeScheduleStore) Advance(ctx context.Context, id string, nextRun, lastRun time.Time) error {
	return nil
}
func (f *fakeScheduleStore) Create(ctx context.Context, entry store.ScheduleEntry) (string, error) {
	entry.ID = "sched-1"
	f.entries[entry.ID] = entry
	return entry.ID, nil
}
func (f *fakeScheduleStore) Deactivate(ctx context.Context, id string) (bool, error) {
	e, ok := f.entries[id]
	if !ok {
		return false, nil
	}
	e.IsActive = false
	f.entries[id] = e
	return true, nil
}
func (f *fakeScheduleStore) FindActiveByAgent(ctx context.Context, userID, agentName string) (*store.ScheduleEntry, error) {
	return nil, nil
}
func (f *fakeScheduleStore) UpdateFromHeartbeat(ctx context.Context, id, cron string, nextRun time.Time, config map[string]any) error {
	return nil
}
func (f *fakeScheduleStore) List(ctx context.Context, userID string) ([]store.ScheduleEntry, error) {
	var out []store.ScheduleEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeArtifactBackend struct {
	items []store.Artifact
}

func (f *fakeArtifactBackend) Write(ctx context.Context, a store.Artifact) (string, error) {
	a.ID = "artifact-1"
	f.items = append(f.items, a)
	return a.ID, nil
}
func (f *fakeArtifactBackend) Get(ctx context.Context, id string) (*store.Artifact, error) {
	for _, a := range f.items {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}
func (f *fakeArtifactBackend) List(ctx context.Context, userID, artifactType string, limit int) ([]store.Artifact, error) {
	return f.items, nil
}

type fakeNotificationBackend struct {
	unread  []store.Notification
	readIDs []string
}

func (f *fakeNotificationBackend) Post(ctx context.Context, n store.Notification) (string, error) {
	return "notif-1", nil
}
func (f *fakeNotificationBackend) GetUnread(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	return f.unread, nil
}
func (f *fakeNotificationBackend) MarkRead(ctx context.Context, ids []string) (int, error) {
	f.readIDs = append(f.readIDs, ids...)
	return len(ids), nil
}

func newTestServer() *Server {
	regStore := &fakeRegistryStore{}
	schedStore := newFakeScheduleStore()
	artBackend := &fakeArtifactBackend{}
	notifBackend := &fakeNotificationBackend{}

	s := &Server{
		resolver:    registry.NewResolver(regStore, ""),
		scheduler:   scheduler.New(schedStore, nil, time.Minute),
		artifacts:   artifacts.New(artBackend),
		notifier:    notify.New(notifBackend),
		clients:     make(map[string]*Client),
		rateLimiter: NewRateLimiter(0, 0),
	}
	s.router = NewMethodRouter(s)
	return s
}

func dispatch(t *testing.T, s *Server, c *Client, method string, params any) protocol.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	req := protocol.Request{ID: "req-1", Method: method, Params: raw}
	return s.router.Dispatch(context.Background(), c, req)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}
	resp := dispatch(t, s, c, "health", map[string]any{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestHandleAgentsListEmptyRegistry(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}
	resp := dispatch(t, s, c, "agents.list", map[string]any{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestHandleCronCreateListDeleteRoundtrip(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}

	createResp := dispatch(t, s, c, "cron.create", map[string]any{
		"agent_name": "digest-bot",
		"skill":      "digest",
		"cron":       "0 8 * * *",
	})
	if createResp.Error != nil {
		t.Fatalf("cron.create error: %+v", createResp.Error)
	}
	var created map[string]string
	if err := json.Unmarshal(createResp.Result, &created); err != nil {
		t.Fatalf("unmarshal create result: %v", err)
	}
	if created["schedule_id"] == "" {
		t.Fatal("expected non-empty schedule_id")
	}

	listResp := dispatch(t, s, c, "cron.list", map[string]any{})
	if listResp.Error != nil {
		t.Fatalf("cron.list error: %+v", listResp.Error)
	}

	deleteResp := dispatch(t, s, c, "cron.delete", map[string]any{"schedule_id": created["schedule_id"]})
	if deleteResp.Error != nil {
		t.Fatalf("cron.delete error: %+v", deleteResp.Error)
	}
	var deleted map[string]bool
	if err := json.Unmarshal(deleteResp.Result, &deleted); err != nil {
		t.Fatalf("unmarshal delete result: %v", err)
	}
	if !deleted["deleted"] {
		t.Fatal("expected deleted=true")
	}
}

func TestHandleArtifactsWriteThenList(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}

	if _, err := s.artifacts.Write(context.Background(), "user-1", "agent-1", "report", "hello", nil); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}

	resp := dispatch(t, s, c, "artifacts.list", map[string]any{"limit": 10})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var items []store.Artifact
	if err := json.Unmarshal(resp.Result, &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(items))
	}
}

func TestHandleNotificationsUnreadAndRead(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}

	unreadResp := dispatch(t, s, c, "notifications.unread", map[string]any{})
	if unreadResp.Error != nil {
		t.Fatalf("unexpected error: %+v", unreadResp.Error)
	}

	readResp := dispatch(t, s, c, "notifications.read", map[string]any{"ids": []string{"n1", "n2"}})
	if readResp.Error != nil {
		t.Fatalf("unexpected error: %+v", readResp.Error)
	}
	var marked map[string]int
	if err := json.Unmarshal(readResp.Result, &marked); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if marked["marked"] != 2 {
		t.Fatalf("expected 2 marked, got %d", marked["marked"])
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	s := newTestServer()
	c := &Client{userID: "user-1"}
	resp := dispatch(t, s, c, "nonexistent.method", map[string]any{})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != "unknown_method" {
		t.Fatalf("expected unknown_method code, got %q", resp.Error.Code)
	}
}

func TestDispatchRateLimited(t *testing.T) {
	s := newTestServer()
	s.rateLimiter = NewRateLimiter(60, 1)
	c := &Client{userID: "user-1"}

	first := dispatch(t, s, c, "health", map[string]any{})
	if first.Error != nil {
		t.Fatalf("first call should succeed: %+v", first.Error)
	}
	second := dispatch(t, s, c, "health", map[string]any{})
	if second.Error == nil || second.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited error, got %+v", second.Error)
	}
}
