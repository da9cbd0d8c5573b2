// Package notify implements the Notification Queue component: durable
// delivery records plus live fan-out to connected WebSocket clients,
// with offline catch-up at session open.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/svarun115/assistant-gateway/internal/store"
	"github.com/svarun115/assistant-gateway/pkg/protocol"
)

// Sink receives a NotificationFrame for a specific user's live
// connection. The gateway's WebSocket handler implements this.
type Sink interface {
	Send(frame protocol.NotificationFrame) error
}

// Queue is the Notification Queue component.
type Queue struct {
	store store.NotificationStore

	mu    sync.RWMutex
	sinks map[string][]Sink // user_id -> active sinks
}

func New(st store.NotificationStore) *Queue {
	return &Queue{
		store: st,
		sinks: make(map[string][]Sink),
	}
}

// Register attaches a live sink for a user (e.g. a freshly opened
// WebSocket connection).
func (q *Queue) Register(userID string, sink Sink) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sinks[userID] = append(q.sinks[userID], sink)
}

// Unregister removes a sink, e.g. when its connection closes.
func (q *Queue) Unregister(userID string, sink Sink) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.sinks[userID]
	for i, s := range list {
		if s == sink {
			q.sinks[userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(q.sinks[userID]) == 0 {
		delete(q.sinks, userID)
	}
}

// Post writes a notification to the store first, then fans it out to
// any sinks currently registered for the user. The durable write
// always happens before fan-out, so a client that connects in the gap
// between write and push will still pick the notification up via
// GetUnread at session open rather than losing it.
func (q *Queue) Post(ctx context.Context, userID, fromAgent, message, priority, artifactID string) (string, error) {
	id, err := q.store.Post(ctx, store.Notification{
		UserID:     userID,
		FromAgent:  fromAgent,
		Message:    message,
		Priority:   priority,
		ArtifactID: artifactID,
	})
	if err != nil {
		return "", err
	}

	frame := protocol.NewNotificationFrame(id, fromAgent, message, priority, artifactID)
	q.mu.RLock()
	sinks := append([]Sink(nil), q.sinks[userID]...)
	q.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Send(frame); err != nil {
			slog.Debug("notify.push_failed", "user", userID, "error", err)
		}
	}

	return id, nil
}

// GetUnread returns unread notifications for a user, newest first.
func (q *Queue) GetUnread(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	return q.store.GetUnread(ctx, userID, limit)
}

// MarkRead marks notifications as read. Call after pushing unread
// notifications to a newly opened session.
func (q *Queue) MarkRead(ctx context.Context, ids []string) (int, error) {
	return q.store.MarkRead(ctx, ids)
}
