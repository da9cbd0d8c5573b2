// Package vault implements the credential vault: per-user, per-service
// encrypted token storage with key-version-tagged rows so operators
// can rotate the encryption key without re-encrypting everything in
// one pass. Rows written in plaintext mode (no "enc:" prefix) are read
// back as-is, and are not re-encrypted when encryption is later turned
// on.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/crypto"
	"github.com/svarun115/assistant-gateway/internal/store"
)

// ErrNotFound is returned by Get when no credential row exists.
var ErrNotFound = errors.New("vault: credential not found")

// Vault is the Credential Vault component.
type Vault struct {
	store        store.CredentialStore
	currentKeyID string
	currentKey   []byte
	priorKeys    map[string][]byte
	plaintext    bool
}

// New builds a Vault from config. If no encryption key is configured,
// the vault operates in plaintext mode (dev only) and logs a warning
// on every write.
func New(st store.CredentialStore, cfg config.VaultConfig) (*Vault, error) {
	v := &Vault{store: st, priorKeys: map[string][]byte{}}

	if cfg.CurrentKey == "" {
		v.plaintext = true
		slog.Warn("vault.plaintext_mode", "reason", "no encryption key configured")
		return v, nil
	}

	key, err := crypto.DeriveKey(cfg.CurrentKey)
	if err != nil {
		return nil, err
	}
	v.currentKeyID = cfg.CurrentKeyID
	v.currentKey = key

	for id, passphrase := range cfg.PriorKeys {
		k, err := crypto.DeriveKey(passphrase)
		if err != nil {
			return nil, err
		}
		v.priorKeys[id] = k
	}
	return v, nil
}

func (v *Vault) keyFor(keyID string) ([]byte, bool) {
	if keyID == v.currentKeyID {
		return v.currentKey, true
	}
	if k, ok := v.priorKeys[keyID]; ok {
		return k, false
	}
	return nil, false
}

// Get decrypts and returns the token_data JSON for a service, lazily
// re-encrypting the row under the current key if it was sealed with
// an older one.
func (v *Vault) Get(ctx context.Context, userID, service string) (map[string]any, error) {
	row, err := v.store.Get(ctx, userID, service)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}

	var plaintext string
	if v.plaintext || !crypto.IsEncrypted(row.TokenData) {
		plaintext = row.TokenData
	} else {
		key, isCurrent := v.keyFor(row.EncryptionKeyID)
		if key == nil {
			slog.Error("vault.decrypt_failed", "user", userID, "service", service, "reason", "unknown key id", "key_id", row.EncryptionKeyID)
			return nil, errors.New("vault: unknown encryption key id " + row.EncryptionKeyID)
		}
		plaintext, err = crypto.Decrypt(row.TokenData, key)
		if err != nil {
			slog.Error("vault.decrypt_failed", "user", userID, "service", service, "error", err)
			return nil, err
		}
		if !isCurrent && v.currentKey != nil {
			if reErr := v.reencrypt(ctx, userID, service, plaintext, row); reErr != nil {
				slog.Warn("vault.reencrypt_failed", "user", userID, "service", service, "error", reErr)
			} else {
				slog.Info("vault.reencrypted", "user", userID, "service", service, "from_key", row.EncryptionKeyID, "to_key", v.currentKeyID)
			}
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (v *Vault) reencrypt(ctx context.Context, userID, service, plaintext string, row *store.UserCredential) error {
	sealed, err := crypto.Encrypt(plaintext, v.currentKey)
	if err != nil {
		return err
	}
	return v.store.Put(ctx, store.UserCredential{
		UserID:          userID,
		Service:         service,
		TokenData:       sealed,
		EncryptionKeyID: v.currentKeyID,
		Scopes:          row.Scopes,
		ExpiresAt:       row.ExpiresAt,
		Metadata:        row.Metadata,
	})
}

// Put encrypts and upserts a credential.
func (v *Vault) Put(ctx context.Context, userID, service string, tokenData map[string]any, scopes []string, expiresAt *time.Time, metadata map[string]any) error {
	plaintext, err := json.Marshal(tokenData)
	if err != nil {
		return err
	}

	sealed := string(plaintext)
	keyID := ""
	if !v.plaintext {
		sealed, err = crypto.Encrypt(string(plaintext), v.currentKey)
		if err != nil {
			return err
		}
		keyID = v.currentKeyID
	} else {
		slog.Warn("vault.plaintext_write", "user", userID, "service", service)
	}

	return v.store.Put(ctx, store.UserCredential{
		UserID:          userID,
		Service:         service,
		TokenData:       sealed,
		EncryptionKeyID: keyID,
		Scopes:          scopes,
		ExpiresAt:       expiresAt,
		Metadata:        metadata,
	})
}

// Delete removes a credential. Returns true if a row was deleted.
func (v *Vault) Delete(ctx context.Context, userID, service string) (bool, error) {
	return v.store.Delete(ctx, userID, service)
}

// ListServices lists service names with stored credentials for a user.
func (v *Vault) ListServices(ctx context.Context, userID string) ([]string, error) {
	return v.store.ListServices(ctx, userID)
}
