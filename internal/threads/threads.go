// Package threads tracks persistent foreground-agent conversations:
// threads a user can switch to and continue like a normal chat, as
// opposed to the ephemeral thread IDs task and background agents use
// internally.
package threads

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// Manager creates and looks up foreground threads.
type Manager struct {
	store store.ThreadStore
}

func NewManager(st store.ThreadStore) *Manager {
	return &Manager{store: st}
}

// Create registers a new foreground thread and returns its ID.
func (m *Manager) Create(ctx context.Context, userID, title, modelProvider, modelName string) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	if err := m.store.Create(ctx, store.ThreadRecord{
		ID:            id,
		UserID:        userID,
		Title:         title,
		ModelProvider: modelProvider,
		ModelName:     modelName,
	}); err != nil {
		return "", err
	}
	return id, nil
}

// Get looks up a thread by ID.
func (m *Manager) Get(ctx context.Context, id string) (*store.ThreadRecord, error) {
	return m.store.Get(ctx, id)
}

// TitleFromSkill builds a default thread title from a skill name,
// e.g. "financial-advisor" -> "Financial Advisor Agent".
func TitleFromSkill(skill string) string {
	words := strings.Split(skill, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return fmt.Sprintf("%s Agent", strings.Join(words, " "))
}
