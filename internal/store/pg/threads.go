package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGThreadStore implements store.ThreadStore.
type PGThreadStore struct {
	db *sql.DB
}

func NewPGThreadStore(db *sql.DB) *PGThreadStore {
	return &PGThreadStore{db: db}
}

func (s *PGThreadStore) Create(ctx context.Context, t store.ThreadRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, user_id, title, model_provider, model_name)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.UserID, t.Title, t.ModelProvider, t.ModelName,
	)
	return err
}

func (s *PGThreadStore) Get(ctx context.Context, id string) (*store.ThreadRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, model_provider, model_name, created_at FROM threads WHERE id = $1`, id)

	var t store.ThreadRecord
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.ModelProvider, &t.ModelName, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
