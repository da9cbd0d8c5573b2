package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGCredentialStore implements store.CredentialStore.
type PGCredentialStore struct {
	db *sql.DB
}

func NewPGCredentialStore(db *sql.DB) *PGCredentialStore {
	return &PGCredentialStore{db: db}
}

func (s *PGCredentialStore) Get(ctx context.Context, userID, service string) (*store.UserCredential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT token_data, encryption_key_id, scopes, expires_at, metadata, updated_at
		 FROM user_credentials WHERE user_id = $1 AND service = $2`,
		userID, service,
	)

	var cred store.UserCredential
	var scopesRaw, metaRaw []byte
	cred.UserID, cred.Service = userID, service
	if err := row.Scan(&cred.TokenData, &cred.EncryptionKeyID, &scopesRaw, &cred.ExpiresAt, &metaRaw, &cred.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(scopesRaw) > 0 {
		_ = json.Unmarshal(scopesRaw, &cred.Scopes)
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &cred.Metadata)
	}
	return &cred, nil
}

func (s *PGCredentialStore) Put(ctx context.Context, cred store.UserCredential) error {
	metaJSON, err := json.Marshal(cred.Metadata)
	if err != nil {
		return err
	}
	scopesJSON, err := json.Marshal(cred.Scopes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_credentials (user_id, service, token_data, encryption_key_id, scopes, expires_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, service) DO UPDATE SET
		   token_data = EXCLUDED.token_data,
		   encryption_key_id = EXCLUDED.encryption_key_id,
		   scopes = EXCLUDED.scopes,
		   expires_at = EXCLUDED.expires_at,
		   metadata = COALESCE(EXCLUDED.metadata, user_credentials.metadata),
		   updated_at = NOW()`,
		cred.UserID, cred.Service, cred.TokenData, cred.EncryptionKeyID, scopesJSON, cred.ExpiresAt, metaJSON,
	)
	return err
}

func (s *PGCredentialStore) Delete(ctx context.Context, userID, service string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_credentials WHERE user_id = $1 AND service = $2`, userID, service)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PGCredentialStore) ListServices(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service FROM user_credentials WHERE user_id = $1 ORDER BY service`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var svc string
		if err := rows.Scan(&svc); err != nil {
			continue
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}
