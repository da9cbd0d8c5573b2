package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/svarun115/assistant-gateway/internal/store"
)

// PGRegistryStore implements store.RegistryStore.
type PGRegistryStore struct {
	db *sql.DB
}

func NewPGRegistryStore(db *sql.DB) *PGRegistryStore {
	return &PGRegistryStore{db: db}
}

func (s *PGRegistryStore) GetTemplate(ctx context.Context, name string) (*store.AgentTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, agent_md, tools_md, bootstrap_md, heartbeat_md, content_hash, version, created_at, updated_at
		 FROM agent_templates WHERE name = $1`, name)

	var t store.AgentTemplate
	var toolsMD, bootstrapMD, heartbeatMD sql.NullString
	if err := row.Scan(&t.Name, &t.Description, &t.AgentMD, &toolsMD, &bootstrapMD, &heartbeatMD, &t.ContentHash, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.ToolsMD, t.BootstrapMD, t.HeartbeatMD = toolsMD.String, bootstrapMD.String, heartbeatMD.String
	return &t, nil
}

// UpsertTemplate inserts a brand-new template at version 1, or updates
// an existing one and bumps its version, flagging instances that
// haven't customized agent_md for an available upgrade. Callers are
// expected to have already decided the incoming content differs from
// what's stored (via content-hash comparison) before calling this.
func (s *PGRegistryStore) UpsertTemplate(ctx context.Context, tmpl store.AgentTemplate) (bool, error) {
	existing, err := s.GetTemplate(ctx, tmpl.Name)
	if err != nil {
		return false, err
	}

	if existing == nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO agent_templates (name, description, agent_md, tools_md, bootstrap_md, heartbeat_md, content_hash, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`,
			tmpl.Name, tmpl.Description, tmpl.AgentMD, tmpl.ToolsMD, tmpl.BootstrapMD, tmpl.HeartbeatMD, tmpl.ContentHash,
		)
		return true, err
	}

	newVersion := existing.Version + 1
	_, err = s.db.ExecContext(ctx,
		`UPDATE agent_templates SET description=$1, agent_md=$2, tools_md=$3, bootstrap_md=$4,
		   heartbeat_md=$5, content_hash=$6, version=$7, updated_at=NOW() WHERE name=$8`,
		tmpl.Description, tmpl.AgentMD, tmpl.ToolsMD, tmpl.BootstrapMD, tmpl.HeartbeatMD, tmpl.ContentHash, newVersion, tmpl.Name,
	)
	if err != nil {
		return false, err
	}
	return false, s.FlagUpgradeAvailable(ctx, tmpl.Name)
}

func (s *PGRegistryStore) FlagUpgradeAvailable(ctx context.Context, templateName string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_instances SET upgrade_available = TRUE
		 WHERE template_name = $1 AND NOT ($2 = ANY(customized_files))`,
		templateName, "agent_md",
	)
	return err
}

func (s *PGRegistryStore) GetInstance(ctx context.Context, userID, agentName string) (*store.AgentInstance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, agent_name, COALESCE(template_name, ''), source, agent_md, tools_md, bootstrap_md, heartbeat_md, soul_md,
		        customized_files, template_version, upgrade_available, is_active, created_at, updated_at
		 FROM agent_instances WHERE user_id = $1 AND agent_name = $2 AND is_active = TRUE`,
		userID, agentName)

	var inst store.AgentInstance
	var toolsMD, bootstrapMD, heartbeatMD, soulMD sql.NullString
	var customized pq.StringArray
	if err := row.Scan(&inst.UserID, &inst.AgentName, &inst.TemplateName, &inst.Source, &inst.AgentMD, &toolsMD, &bootstrapMD, &heartbeatMD, &soulMD,
		&customized, &inst.TemplateVersion, &inst.UpgradeAvailable, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	inst.ToolsMD, inst.BootstrapMD, inst.HeartbeatMD, inst.SoulMD = toolsMD.String, bootstrapMD.String, heartbeatMD.String, soulMD.String
	inst.CustomizedFiles = []string(customized)
	return &inst, nil
}

func (s *PGRegistryStore) CreateInstance(ctx context.Context, inst store.AgentInstance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_instances
		   (user_id, agent_name, template_name, source, agent_md, tools_md, bootstrap_md, heartbeat_md, soul_md,
		    customized_files, template_version, upgrade_available, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, TRUE)
		 ON CONFLICT (user_id, agent_name) DO NOTHING`,
		inst.UserID, inst.AgentName, nullIfEmpty(inst.TemplateName), inst.Source, inst.AgentMD, inst.ToolsMD, inst.BootstrapMD, inst.HeartbeatMD, inst.SoulMD,
		pq.Array(inst.CustomizedFiles), inst.TemplateVersion,
	)
	return err
}

// UpsertUserDefinedInstance creates or overwrites a user-authored agent
// with no backing template (always source='user_defined').
func (s *PGRegistryStore) UpsertUserDefinedInstance(ctx context.Context, inst store.AgentInstance) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_instances
		   (user_id, agent_name, template_name, source, agent_md, tools_md, bootstrap_md, heartbeat_md)
		 VALUES ($1, $2, NULL, 'user_defined', $3, $4, $5, $6)
		 ON CONFLICT (user_id, agent_name) DO UPDATE SET
		   agent_md=EXCLUDED.agent_md, tools_md=EXCLUDED.tools_md,
		   bootstrap_md=EXCLUDED.bootstrap_md, heartbeat_md=EXCLUDED.heartbeat_md,
		   updated_at=NOW()`,
		inst.UserID, inst.AgentName, inst.AgentMD, inst.ToolsMD, inst.BootstrapMD, inst.HeartbeatMD,
	)
	return err
}

// UpdateInstanceFile overwrites a single named file on a user's
// instance and marks it customized, so a later template upgrade never
// silently clobbers it. file must be one of agent_md, tools_md,
// bootstrap_md, heartbeat_md, soul_md.
func (s *PGRegistryStore) UpdateInstanceFile(ctx context.Context, userID, agentName, file, content string) error {
	column, ok := instanceFileColumns[file]
	if !ok {
		return fmt.Errorf("unknown agent instance file %q", file)
	}
	query := fmt.Sprintf(
		`UPDATE agent_instances SET %s = $1,
		   customized_files = array_append(array_remove(customized_files, $2::text), $2::text),
		   updated_at = NOW()
		 WHERE user_id = $3 AND agent_name = $4`, column)
	_, err := s.db.ExecContext(ctx, query, content, file, userID, agentName)
	return err
}

var instanceFileColumns = map[string]string{
	"agent_md":     "agent_md",
	"tools_md":     "tools_md",
	"bootstrap_md": "bootstrap_md",
	"heartbeat_md": "heartbeat_md",
	"soul_md":      "soul_md",
}

func (s *PGRegistryStore) UpdateSoul(ctx context.Context, userID, agentName, soulMD string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agent_instances SET soul_md = $1, updated_at = NOW()
		 WHERE user_id = $2 AND agent_name = $3 AND is_active = TRUE`,
		soulMD, userID, agentName,
	)
	return err
}

// DeactivateInstance soft-deletes a user's agent instance.
func (s *PGRegistryStore) DeactivateInstance(ctx context.Context, userID, agentName string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agent_instances SET is_active = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND agent_name = $2 AND is_active = TRUE`,
		userID, agentName,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListTemplates lists every seeded agent template.
func (s *PGRegistryStore) ListTemplates(ctx context.Context) ([]store.AgentTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, agent_md, tools_md, bootstrap_md, heartbeat_md, content_hash, version, created_at, updated_at
		 FROM agent_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AgentTemplate
	for rows.Next() {
		var t store.AgentTemplate
		var toolsMD, bootstrapMD, heartbeatMD sql.NullString
		if err := rows.Scan(&t.Name, &t.Description, &t.AgentMD, &toolsMD, &bootstrapMD, &heartbeatMD, &t.ContentHash, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			continue
		}
		t.ToolsMD, t.BootstrapMD, t.HeartbeatMD = toolsMD.String, bootstrapMD.String, heartbeatMD.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PGRegistryStore) ListInstances(ctx context.Context, userID string) ([]store.AgentInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, agent_name, COALESCE(template_name, ''), source, agent_md, tools_md, bootstrap_md, heartbeat_md, soul_md,
		        customized_files, template_version, upgrade_available, is_active, created_at, updated_at
		 FROM agent_instances WHERE user_id = $1 AND is_active = TRUE ORDER BY agent_name`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AgentInstance
	for rows.Next() {
		var inst store.AgentInstance
		var toolsMD, bootstrapMD, heartbeatMD, soulMD sql.NullString
		var customized pq.StringArray
		if err := rows.Scan(&inst.UserID, &inst.AgentName, &inst.TemplateName, &inst.Source, &inst.AgentMD, &toolsMD, &bootstrapMD, &heartbeatMD, &soulMD,
			&customized, &inst.TemplateVersion, &inst.UpgradeAvailable, &inst.IsActive, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			continue
		}
		inst.ToolsMD, inst.BootstrapMD, inst.HeartbeatMD, inst.SoulMD = toolsMD.String, bootstrapMD.String, heartbeatMD.String, soulMD.String
		inst.CustomizedFiles = []string(customized)
		out = append(out, inst)
	}
	return out, rows.Err()
}
