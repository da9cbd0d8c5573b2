// Package artifacts implements the Artifact Store component: durable
// persistence of agent output, with preview truncation for listings.
package artifacts

import (
	"context"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// Store is the Artifact Store component.
type Store struct {
	backend store.ArtifactStore
}

func New(backend store.ArtifactStore) *Store {
	return &Store{backend: backend}
}

// Write persists agent output and returns its artifact id.
func (s *Store) Write(ctx context.Context, userID, agentID, artifactType, content string, metadata map[string]any) (string, error) {
	return s.backend.Write(ctx, store.Artifact{
		UserID:   userID,
		AgentID:  agentID,
		Type:     artifactType,
		Content:  content,
		Metadata: metadata,
	})
}

// Get retrieves a single artifact by id.
func (s *Store) Get(ctx context.Context, id string) (*store.Artifact, error) {
	return s.backend.Get(ctx, id)
}

// List returns recent artifacts for a user, optionally filtered by
// type, each with content truncated to a 200-character preview.
func (s *Store) List(ctx context.Context, userID, artifactType string, limit int) ([]store.Artifact, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.backend.List(ctx, userID, artifactType, limit)
}
