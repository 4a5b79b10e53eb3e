package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/keymanager/internal/domain/wrappedkey"
)

var wrappedColumns = []string{"alias", "master_alias", "public_key", "private_key", "created_by", "created_at", "updated_by", "updated_at"}

func TestWrappedKeyGetFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM key_store")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(wrappedColumns).
			AddRow("a1", "m1", []byte{0x30}, []byte{0x01}, "system", now, "system", now))

	wk, ok, err := NewWrappedKeyStore(db).Get(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", wk.MasterAlias)
	assert.Equal(t, []byte{0x30}, wk.PublicKey)
	assert.Equal(t, []byte{0x01}, wk.PrivateKey)
}

func TestWrappedKeyGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM key_store")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(wrappedColumns))

	_, ok, err := NewWrappedKeyStore(db).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWrappedKeyInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO key_store")).
		WithArgs("a1", "m1", []byte{0x30}, []byte{0x01},
			"system", sqlmock.AnyArg(), "system", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewWrappedKeyStore(db).Insert(context.Background(), wrappedkey.WrappedKey{
		Alias:       "a1",
		MasterAlias: "m1",
		PublicKey:   []byte{0x30},
		PrivateKey:  []byte{0x01},
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
