package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/svarun115/assistant-gateway/internal/store"
	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

type fakeNotificationStore struct {
	mu      sync.Mutex
	posts   []store.Notification
	unread  []store.Notification
	readIDs []string
}

func (f *fakeNotificationStore) Post(ctx context.Context, n store.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = "notif-1"
	f.posts = append(f.posts, n)
	return n.ID, nil
}

func (f *fakeNotificationStore) GetUnread(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	return f.unread, nil
}

func (f *fakeNotificationStore) MarkRead(ctx context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readIDs = append(f.readIDs, ids...)
	return len(ids), nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames []protocol.NotificationFrame
	err    error
}

func (s *recordingSink) Send(frame protocol.NotificationFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func TestPostWritesBeforeFanOut(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)
	sink := &recordingSink{}
	q.Register("user-1", sink)

	id, err := q.Post(context.Background(), "user-1", "agent-a", "hello", "normal", "")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if id != "notif-1" {
		t.Fatalf("id = %q", id)
	}
	if len(fs.posts) != 1 {
		t.Fatalf("expected durable write, got %d posts", len(fs.posts))
	}
	if len(sink.frames) != 1 || sink.frames[0].Message != "hello" {
		t.Fatalf("expected fan-out to sink, got %+v", sink.frames)
	}
}

func TestPostWithNoRegisteredSinkStillWritesDurably(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)

	if _, err := q.Post(context.Background(), "user-1", "agent-a", "hello", "low", ""); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(fs.posts) != 1 {
		t.Fatalf("expected durable write even with no live sink, got %d", len(fs.posts))
	}
}

func TestPostContinuesAfterSinkSendError(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)
	failing := &recordingSink{err: errors.New("closed")}
	ok := &recordingSink{}
	q.Register("user-1", failing)
	q.Register("user-1", ok)

	if _, err := q.Post(context.Background(), "user-1", "agent-a", "hi", "normal", ""); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(ok.frames) != 1 {
		t.Fatalf("expected second sink to still receive the frame, got %+v", ok.frames)
	}
}

func TestUnregisterRemovesOnlyMatchingSink(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)
	a := &recordingSink{}
	b := &recordingSink{}
	q.Register("user-1", a)
	q.Register("user-1", b)

	q.Unregister("user-1", a)

	if _, err := q.Post(context.Background(), "user-1", "agent-a", "hi", "normal", ""); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if len(a.frames) != 0 {
		t.Fatalf("unregistered sink should not receive frames, got %+v", a.frames)
	}
	if len(b.frames) != 1 {
		t.Fatalf("remaining sink should still receive frames, got %+v", b.frames)
	}
}

func TestUnregisterLastSinkClearsUserEntry(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)
	a := &recordingSink{}
	q.Register("user-1", a)
	q.Unregister("user-1", a)

	q.mu.RLock()
	_, ok := q.sinks["user-1"]
	q.mu.RUnlock()
	if ok {
		t.Fatalf("expected sinks map entry to be cleared once empty")
	}
}

func TestGetUnreadDefaultsLimit(t *testing.T) {
	fs := &fakeNotificationStore{unread: []store.Notification{{ID: "n1"}}}
	q := New(fs)

	got, err := q.GetUnread(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("GetUnread: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
}

func TestMarkReadDelegates(t *testing.T) {
	fs := &fakeNotificationStore{}
	q := New(fs)

	n, err := q.MarkRead(context.Background(), []string{"n1", "n2"})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if len(fs.readIDs) != 2 {
		t.Fatalf("expected store to record 2 read ids, got %v", fs.readIDs)
	}
}
