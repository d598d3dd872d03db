package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository backed by the catalog_items table
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgreSQL-backed catalog repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, tenant_id, category_slug, slug, label, ordem, ativo, metadata, produto_id`

// GetRequiredItem resolves one item. Lookups by id ignore deleted_at so that
// rules persisted before an item was retired still restore.
func (r *PostgresRepository) GetRequiredItem(ctx context.Context, lookup Lookup) (*Item, error) {
	if err := lookup.validate(); err != nil {
		return nil, err
	}

	var row *sql.Row
	switch {
	case lookup.ID != "":
		row = r.db.QueryRowContext(ctx, `
			SELECT `+itemColumns+`
			FROM catalog_items
			WHERE tenant_id = $1 AND id = $2
		`, lookup.TenantID, lookup.ID)
	case lookup.Slug != "":
		row = r.db.QueryRowContext(ctx, `
			SELECT `+itemColumns+`
			FROM catalog_items
			WHERE tenant_id = $1 AND category_slug = $2 AND slug = $3 AND deleted_at IS NULL
		`, lookup.TenantID, lookup.Category, lookup.Slug)
	default:
		row = r.db.QueryRowContext(ctx, `
			SELECT `+itemColumns+`
			FROM catalog_items
			WHERE tenant_id = $1 AND category_slug = $2 AND deleted_at IS NULL
			  AND UPPER(COALESCE(metadata->>'legacyValue', slug)) = UPPER($3)
			LIMIT 1
		`, lookup.TenantID, lookup.Category, lookup.LegacyValue)
	}

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, lookup)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}

	if lookup.Category != "" {
		if err := item.EnsureCategory(lookup.Category); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// FindItemsByIDs loads every id in a single query
func (r *PostgresRepository) FindItemsByIDs(ctx context.Context, tenantID string, ids []string) ([]*Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM catalog_items
		WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// ListByCategory returns the live items of a category
func (r *PostgresRepository) ListByCategory(ctx context.Context, tenantID, category string) ([]*Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM catalog_items
		WHERE tenant_id = $1 AND category_slug = $2 AND deleted_at IS NULL
		ORDER BY ordem ASC NULLS LAST, label ASC, id ASC
	`, tenantID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// Upsert inserts or replaces an item; used by seeding
func (r *PostgresRepository) Upsert(ctx context.Context, item *Item) error {
	var metadata []byte
	if raw := item.RawMetadata(); raw != nil {
		var err error
		metadata, err = json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", item, err)
		}
	}

	var order sql.NullInt64
	if o, ok := item.Order(); ok {
		order = sql.NullInt64{Int64: int64(o), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, tenant_id, category_slug, slug, label, ordem, ativo, metadata, produto_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		ON CONFLICT (tenant_id, id) DO UPDATE
		SET category_slug = EXCLUDED.category_slug,
		    slug = EXCLUDED.slug,
		    label = EXCLUDED.label,
		    ordem = EXCLUDED.ordem,
		    ativo = EXCLUDED.ativo,
		    metadata = EXCLUDED.metadata,
		    produto_id = EXCLUDED.produto_id
	`, item.ID(), item.TenantID(), item.CategorySlug(), item.Slug(), item.Label(),
		order, item.Active(), metadata, item.ProductID())
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item %s: %w", item, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*Item, error) {
	var (
		p         Props
		order     sql.NullInt64
		metadata  []byte
		productID sql.NullString
	)
	if err := s.Scan(&p.ID, &p.TenantID, &p.CategorySlug, &p.Slug, &p.Label,
		&order, &p.Active, &metadata, &productID); err != nil {
		return nil, err
	}

	if order.Valid {
		o := int(order.Int64)
		p.Order = &o
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for catalog item %s: %w", p.ID, err)
		}
	}
	p.ProductID = productID.String

	return NewItem(p)
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog items: %w", err)
	}
	return items, nil
}
