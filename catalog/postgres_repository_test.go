package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogColumns = []string{"id", "tenant_id", "category_slug", "slug", "label", "ordem", "ativo", "metadata", "produto_id"}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewPostgresRepository(db)
}

func TestPostgresGetRequiredItemBySlug(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(catalogColumns).
		AddRow("op-1", "tenant-1", CategoryRuleOperators, "vazio", "Está vazio", int64(11), true, []byte(`{"requiresValue":false}`), nil)
	mock.ExpectQuery(`SELECT (.+) FROM catalog_items WHERE tenant_id = \$1 AND category_slug = \$2 AND slug = \$3`).
		WithArgs("tenant-1", CategoryRuleOperators, "vazio").
		WillReturnRows(rows)

	item, err := repo.GetRequiredItem(context.Background(), Lookup{TenantID: "tenant-1", Category: CategoryRuleOperators, Slug: "vazio"})

	require.NoError(t, err)
	assert.Equal(t, "op-1", item.ID())
	assert.False(t, item.Metadata().RequiresValueOr(true))
	order, ok := item.Order()
	assert.True(t, ok)
	assert.Equal(t, 11, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRequiredItemNotFound(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM catalog_items WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs("tenant-1", "missing").
		WillReturnRows(sqlmock.NewRows(catalogColumns))

	_, err := repo.GetRequiredItem(context.Background(), Lookup{TenantID: "tenant-1", ID: "missing"})

	require.ErrorIs(t, err, ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRequiredItemCategoryMismatch(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(catalogColumns).
		AddRow("op-1", "tenant-1", CategoryRuleOperators, "igual", "Igual", nil, true, nil, nil)
	mock.ExpectQuery(`SELECT (.+) FROM catalog_items`).
		WithArgs("tenant-1", "op-1").
		WillReturnRows(rows)

	_, err := repo.GetRequiredItem(context.Background(), Lookup{TenantID: "tenant-1", Category: CategoryRuleActions, ID: "op-1"})

	require.ErrorIs(t, err, ErrCategoryMismatch)
}

func TestPostgresFindItemsByIDs(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(catalogColumns).
		AddRow("f-1", "tenant-1", CategoryRuleFields, "demanda_status", "Status", int64(1), true, []byte(`{"path":"demanda.status"}`), nil).
		AddRow("o-1", "tenant-1", CategoryRuleOperators, "igual", "Igual", int64(1), true, nil, "prod-9")
	mock.ExpectQuery(`SELECT (.+) FROM catalog_items WHERE tenant_id = \$1 AND id = ANY\(\$2\)`).
		WithArgs("tenant-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	items, err := repo.FindItemsByIDs(context.Background(), "tenant-1", []string{"f-1", "o-1"})

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "demanda.status", items[0].Metadata().Path)
	assert.Equal(t, "prod-9", items[1].ProductID())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindItemsByIDsEmpty(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	items, err := repo.FindItemsByIDs(context.Background(), "tenant-1", nil)

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert(t *testing.T) {
	db, mock, repo := setupMockDB(t)
	defer db.Close()

	order := 4
	item := MustNewItem(Props{
		ID: "s-1", TenantID: "tenant-1", CategorySlug: CategoryHypothesisStatus,
		Slug: "refutada", Label: "Refutada", Order: &order, Active: true,
		Metadata: map[string]any{"isFinal": true},
	})

	mock.ExpectExec(`INSERT INTO catalog_items`).
		WithArgs("s-1", "tenant-1", CategoryHypothesisStatus, "refutada", "Refutada",
			sqlmock.AnyArg(), true, []byte(`{"isFinal":true}`), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}
