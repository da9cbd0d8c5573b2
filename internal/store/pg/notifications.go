package pg

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGNotificationStore implements store.NotificationStore.
type PGNotificationStore struct {
	db *sql.DB
}

func NewPGNotificationStore(db *sql.DB) *PGNotificationStore {
	return &PGNotificationStore{db: db}
}

func (s *PGNotificationStore) Post(ctx context.Context, n store.Notification) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	var toThread any
	if n.ToThreadID != "" {
		toThread = n.ToThreadID
	}
	var artifactID any
	if n.ArtifactID != "" {
		artifactID = n.ArtifactID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, from_agent, to_thread_id, message, priority, artifact_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, n.UserID, n.FromAgent, toThread, n.Message, n.Priority, artifactID,
	)
	return id, err
}

func (s *PGNotificationStore) GetUnread(ctx context.Context, userID string, limit int) ([]store.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_agent, message, priority, artifact_id, created_at
		 FROM notifications WHERE user_id = $1 AND read_at IS NULL
		 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Notification
	for rows.Next() {
		var n store.Notification
		var artifactID sql.NullString
		n.UserID = userID
		if err := rows.Scan(&n.ID, &n.FromAgent, &n.Message, &n.Priority, &artifactID, &n.CreatedAt); err != nil {
			continue
		}
		n.ArtifactID = artifactID.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PGNotificationStore) MarkRead(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW()
		 WHERE id = ANY($1::uuid[]) AND read_at IS NULL`,
		"{"+strings.Join(ids, ",")+"}",
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
