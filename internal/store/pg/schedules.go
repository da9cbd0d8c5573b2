package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGScheduleStore implements store.ScheduleStore.
type PGScheduleStore struct {
	db *sql.DB
}

func NewPGScheduleStore(db *sql.DB) *PGScheduleStore {
	return &PGScheduleStore{db: db}
}

func (s *PGScheduleStore) ListDue(ctx context.Context) ([]store.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, agent_name, skill, cron, next_run, last_run, config
		 FROM scheduler WHERE is_active = TRUE AND next_run <= NOW()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleRows(rows)
}

func (s *PGScheduleStore) List(ctx context.Context, userID string) ([]store.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, agent_name, skill, cron, next_run, last_run, config
		 FROM scheduler WHERE user_id = $1 AND is_active = TRUE ORDER BY next_run`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScheduleRows(rows)
}

func scanScheduleRows(rows *sql.Rows) ([]store.ScheduleEntry, error) {
	var out []store.ScheduleEntry
	for rows.Next() {
		var e store.ScheduleEntry
		var configRaw []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.AgentName, &e.Skill, &e.Cron, &e.NextRun, &e.LastRun, &configRaw); err != nil {
			continue
		}
		if len(configRaw) > 0 {
			_ = json.Unmarshal(configRaw, &e.Config)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Advance updates next_run/last_run for a schedule row. Callers must
// do this before invoking the due agent so a crash mid-run can never
// cause the same schedule to fire twice on the next poll.
func (s *PGScheduleStore) Advance(ctx context.Context, id string, nextRun, lastRun time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduler SET last_run = $1, next_run = $2 WHERE id = $3`,
		lastRun, nextRun, id,
	)
	return err
}

func (s *PGScheduleStore) Create(ctx context.Context, entry store.ScheduleEntry) (string, error) {
	configJSON, err := json.Marshal(entry.Config)
	if err != nil {
		return "", err
	}
	id := uuid.Must(uuid.NewV7()).String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduler (id, user_id, agent_name, skill, cron, next_run, config, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)`,
		id, entry.UserID, entry.AgentName, entry.Skill, entry.Cron, entry.NextRun, configJSON,
	)
	return id, err
}

func (s *PGScheduleStore) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduler SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PGScheduleStore) FindActiveByAgent(ctx context.Context, userID, agentName string) (*store.ScheduleEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, agent_name, skill, cron, next_run, last_run, config
		 FROM scheduler WHERE user_id = $1 AND agent_name = $2 AND is_active = TRUE`, userID, agentName)

	var e store.ScheduleEntry
	var configRaw []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.AgentName, &e.Skill, &e.Cron, &e.NextRun, &e.LastRun, &configRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(configRaw) > 0 {
		_ = json.Unmarshal(configRaw, &e.Config)
	}
	return &e, nil
}

// UpdateFromHeartbeat preserves the existing schedule row's identity
// while replacing its cron expression and config — used when an
// agent's HEARTBEAT.md declares a changed cron for a schedule that
// sync_from_heartbeats already created.
func (s *PGScheduleStore) UpdateFromHeartbeat(ctx context.Context, id, cron string, nextRun time.Time, config map[string]any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE scheduler SET cron = $1, next_run = $2, config = $3 WHERE id = $4`,
		cron, nextRun, configJSON, id,
	)
	return err
}
