package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGArtifactStore implements store.ArtifactStore.
type PGArtifactStore struct {
	db *sql.DB
}

func NewPGArtifactStore(db *sql.DB) *PGArtifactStore {
	return &PGArtifactStore{db: db}
}

func (s *PGArtifactStore) Write(ctx context.Context, a store.Artifact) (string, error) {
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", err
	}
	id := uuid.Must(uuid.NewV7()).String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, user_id, agent_id, type, content, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, a.UserID, a.AgentID, a.Type, a.Content, metaJSON,
	)
	return id, err
}

func (s *PGArtifactStore) Get(ctx context.Context, id string) (*store.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, agent_id, type, content, metadata, created_at
		 FROM artifacts WHERE id = $1 AND is_deleted = FALSE`, id)

	var a store.Artifact
	var metaRaw []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.AgentID, &a.Type, &a.Content, &metaRaw, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &a.Metadata)
	}
	return &a, nil
}

func (s *PGArtifactStore) List(ctx context.Context, userID, artifactType string, limit int) ([]store.Artifact, error) {
	query := `SELECT id, agent_id, type, content, metadata, created_at FROM artifacts
	          WHERE user_id = $1 AND is_deleted = FALSE`
	args := []any{userID}
	if artifactType != "" {
		query += ` AND type = $2`
		args = append(args, artifactType)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Artifact
	for rows.Next() {
		var a store.Artifact
		var metaRaw []byte
		a.UserID = userID
		if err := rows.Scan(&a.ID, &a.AgentID, &a.Type, &a.Content, &metaRaw, &a.CreatedAt); err != nil {
			continue
		}
		if len(a.Content) > 200 {
			a.Content = a.Content[:200] + "..."
		}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &a.Metadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
