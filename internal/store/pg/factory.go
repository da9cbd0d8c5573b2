package pg

import (
	"fmt"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// NewStores opens a Postgres connection and wires up every store.*
// implementation this gateway depends on.
func NewStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: new stores: %w", err)
	}

	return &store.Stores{
		Credentials:   NewPGCredentialStore(db),
		Registry:      NewPGRegistryStore(db),
		Schedules:     NewPGScheduleStore(db),
		Artifacts:     NewPGArtifactStore(db),
		Notifications: NewPGNotificationStore(db),
		Threads:       NewPGThreadStore(db),
	}, nil
}
