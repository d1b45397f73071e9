package dbx

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), common.ErrorNotFound)
	assert.ErrorIs(t, MapError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}), common.ErrorConflict)

	err := MapError(errors.New("db down"))
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
	assert.NotErrorIs(t, MapError(&pgconn.PgError{Code: "23503"}), common.ErrorConflict)

	// a non-uuid id matches no row
	err = MapError(fmt.Errorf("query: %w", &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestExpectAffected(t *testing.T) {
	assert.NoError(t, ExpectAffected(sqlmock.NewResult(0, 1)))
	assert.ErrorIs(t, ExpectAffected(sqlmock.NewResult(0, 0)), common.ErrorNotFound)
	assert.Error(t, ExpectAffected(sqlmock.NewErrorResult(errors.New("boom"))))
}
