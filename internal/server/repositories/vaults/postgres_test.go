package vaults

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

var cols = []string{"id", "user_id", "name", "icon", "encrypted_sub_key", "iv", "created_at"}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^INSERT\s+INTO\s+vaults\s*\(user_id,\s*name,\s*icon,\s*encrypted_sub_key,\s*iv\)`

	mock.ExpectQuery(q).WithArgs("u-1", "Work", "Lock", "ct", "iv").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("v-1", time.Now()))
	mock.ExpectQuery(q).WithArgs("u-1", "Work", "Lock", "ct", "iv").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	in := func() *models.Vault {
		return &models.Vault{UserID: "u-1", Name: "Work", Icon: "Lock", EncryptedSubKey: "ct", IV: "iv"}
	}
	v, err := repo.Create(context.Background(), in())
	require.NoError(t, err)
	assert.Equal(t, "v-1", v.ID)

	_, err = repo.Create(context.Background(), in())
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`(?s)^SELECT.*FROM\s+vaults\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("v-1", "u-1", "Personal", "Lock", "ct1", "iv1", time.Now()).
			AddRow("v-2", "u-1", "Work", "Briefcase", "ct2", "iv2", time.Now()))

	got, err := repo.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Briefcase", got[1].Icon)
}

func TestGet_Ownership(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^SELECT.*FROM\s+vaults\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2$`
	mock.ExpectQuery(q).WithArgs("v-1", "u-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", "u-1", "Personal", "Lock", "ct", "iv", time.Now()))
	mock.ExpectQuery(q).WithArgs("v-1", "u-2").WillReturnError(sql.ErrNoRows)

	v, err := repo.Get(context.Background(), "v-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Personal", v.Name)

	_, err = repo.Get(context.Background(), "v-1", "u-2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
