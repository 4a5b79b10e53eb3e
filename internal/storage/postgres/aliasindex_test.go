package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/keymanager/internal/domain/keyalias"
	"github.com/r3e-network/keymanager/internal/keymanager"
)

var aliasColumns = []string{"alias", "app_id", "ref_id", "gen_ts", "exp_ts", "created_by", "created_at", "updated_by", "updated_at"}

func TestListByScopeMasterUsesNullRefID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	exp := gen.AddDate(0, 0, 180)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE app_id = $1 AND ref_id IS NULL")).
		WithArgs("KERNEL").
		WillReturnRows(sqlmock.NewRows(aliasColumns).
			AddRow("a1", "KERNEL", nil, gen, exp, "system", gen, "system", gen))

	rows, err := NewAliasIndex(db).ListByScope(context.Background(), keymanager.NewScope("KERNEL", ""))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0].Alias)
	assert.Empty(t, rows[0].ReferenceID)
	assert.True(t, rows[0].KeyGenerationTime.Equal(gen))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByScopeReferenceMatchesLiterally(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE app_id = $1 AND ref_id = $2")).
		WithArgs("KERNEL", "CLIENT-A").
		WillReturnRows(sqlmock.NewRows(aliasColumns))

	rows, err := NewAliasIndex(db).ListByScope(context.Background(), keymanager.NewScope("KERNEL", "CLIENT-A"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertStampsAuditColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO key_alias")).
		WithArgs("a1", "KERNEL", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"system", sqlmock.AnyArg(), "system", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewAliasIndex(db).Insert(context.Background(), keyalias.KeyAlias{
		Alias:             "a1",
		ApplicationID:     "KERNEL",
		KeyGenerationTime: time.Now(),
		KeyExpiryTime:     time.Now().AddDate(0, 0, 180),
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
