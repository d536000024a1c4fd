package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS workshops`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS registrations`).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := MigrateUp(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_workshops.up.sql", "0002_registrations.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDown_ReverseOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DROP TABLE IF EXISTS registrations`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS workshops`).WillReturnError(errors.New("boom"))

	_, err = MigrateDown(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_workshops.down.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}
