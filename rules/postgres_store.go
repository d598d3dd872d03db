package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/liamcoop/discovery/catalog"
)

// PostgresRuleStore implements RuleStore on the automation_rules table.
// Conditions and actions are stored as JSONB projections; deletes are soft.
type PostgresRuleStore struct {
	db      *sql.DB
	catalog catalog.Repository
}

func NewPostgresRuleStore(db *sql.DB, repo catalog.Repository) *PostgresRuleStore {
	return &PostgresRuleStore{db: db, catalog: repo}
}

const ruleColumns = `id, tenant_id, nome, descricao, condicoes, acoes, ativo, ordem, criado_por, criado_em, atualizado_em`

// Save upserts the rule; criado_em is kept on conflict
func (s *PostgresRuleStore) Save(ctx context.Context, rule *Rule) error {
	p := rule.ToPersistence()

	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automation_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			nome = EXCLUDED.nome,
			descricao = EXCLUDED.descricao,
			condicoes = EXCLUDED.condicoes,
			acoes = EXCLUDED.acoes,
			ativo = EXCLUDED.ativo,
			ordem = EXCLUDED.ordem,
			atualizado_em = EXCLUDED.atualizado_em
	`, p.ID, p.TenantID, p.Name, p.Description, conditions, actions,
		p.Active, p.Order, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (s *PostgresRuleStore) FindByID(ctx context.Context, tenantID, id string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, tenantID, id)

	p, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return Hydrate(ctx, s.catalog, p)
}

func (s *PostgresRuleStore) FindByTenant(ctx context.Context, tenantID string) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY ordem ASC, criado_em ASC, id ASC
	`, tenantID)
}

func (s *PostgresRuleStore) FindActiveByTenant(ctx context.Context, tenantID string) ([]*Rule, error) {
	return s.list(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE tenant_id = $1 AND ativo = true AND deleted_at IS NULL
		ORDER BY ordem ASC, criado_em ASC, id ASC
	`, tenantID)
}

func (s *PostgresRuleStore) list(ctx context.Context, query, tenantID string) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var persisted []PersistedRule
	for rows.Next() {
		p, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		persisted = append(persisted, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	out := make([]*Rule, 0, len(persisted))
	for _, p := range persisted {
		r, err := Hydrate(ctx, s.catalog, p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Delete sets deleted_at; the row stays for audit
func (s *PostgresRuleStore) Delete(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET deleted_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
	`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (PersistedRule, error) {
	var (
		p           PersistedRule
		description sql.NullString
		createdBy   sql.NullString
		conditions  []byte
		actions     []byte
	)
	if err := s.Scan(&p.ID, &p.TenantID, &p.Name, &description, &conditions, &actions,
		&p.Active, &p.Order, &createdBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return PersistedRule{}, err
	}
	p.Description = description.String
	p.CreatedBy = createdBy.String

	if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
		return PersistedRule{}, fmt.Errorf("failed to decode conditions of rule %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(actions, &p.Actions); err != nil {
		return PersistedRule{}, fmt.Errorf("failed to decode actions of rule %s: %w", p.ID, err)
	}
	return p, nil
}
