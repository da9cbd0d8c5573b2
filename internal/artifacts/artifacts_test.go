package artifacts

import (
	"context"
	"testing"

	"github.com/svarun115/assistant-gateway/internal/store"
)

type fakeBackend struct {
	written    []store.Artifact
	getResult  *store.Artifact
	listCalled struct {
		userID, artifactType string
		limit                int
	}
	listResult []store.Artifact
}

func (f *fakeBackend) Write(ctx context.Context, a store.Artifact) (string, error) {
	a.ID = "artifact-1"
	f.written = append(f.written, a)
	return a.ID, nil
}

func (f *fakeBackend) Get(ctx context.Context, id string) (*store.Artifact, error) {
	return f.getResult, nil
}

func (f *fakeBackend) List(ctx context.Context, userID, artifactType string, limit int) ([]store.Artifact, error) {
	f.listCalled.userID = userID
	f.listCalled.artifactType = artifactType
	f.listCalled.limit = limit
	return f.listResult, nil
}

func TestWritePassesFieldsThrough(t *testing.T) {
	fb := &fakeBackend{}
	s := New(fb)

	id, err := s.Write(context.Background(), "user-1", "agent-1", "report", "hello world", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if id != "artifact-1" {
		t.Fatalf("id = %q", id)
	}
	if len(fb.written) != 1 {
		t.Fatalf("expected 1 write, got %d", len(fb.written))
	}
	got := fb.written[0]
	if got.UserID != "user-1" || got.AgentID != "agent-1" || got.Type != "report" || got.Content != "hello world" {
		t.Fatalf("unexpected write: %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Fatalf("metadata not propagated: %+v", got.Metadata)
	}
}

func TestGetDelegatesToBackend(t *testing.T) {
	fb := &fakeBackend{getResult: &store.Artifact{ID: "artifact-2"}}
	s := New(fb)

	got, err := s.Get(context.Background(), "artifact-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != "artifact-2" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestListDefaultsLimitWhenNonPositive(t *testing.T) {
	fb := &fakeBackend{}
	s := New(fb)

	if _, err := s.List(context.Background(), "user-1", "", 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if fb.listCalled.limit != 20 {
		t.Fatalf("expected default limit 20, got %d", fb.listCalled.limit)
	}

	if _, err := s.List(context.Background(), "user-1", "", -5); err != nil {
		t.Fatalf("List: %v", err)
	}
	if fb.listCalled.limit != 20 {
		t.Fatalf("expected default limit 20 for negative input, got %d", fb.listCalled.limit)
	}
}

func TestListPassesExplicitLimitAndType(t *testing.T) {
	fb := &fakeBackend{}
	s := New(fb)

	if _, err := s.List(context.Background(), "user-1", "report", 5); err != nil {
		t.Fatalf("List: %v", err)
	}
	if fb.listCalled.limit != 5 || fb.listCalled.artifactType != "report" || fb.listCalled.userID != "user-1" {
		t.Fatalf("unexpected call params: %+v", fb.listCalled)
	}
}
