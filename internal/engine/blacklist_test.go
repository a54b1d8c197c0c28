package engine

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

func TestBanCascadesDeactivation(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO blacklist").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE subscribers SET is_active = 0").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	expectJournal(mock)

	n, err := eng.Ban(context.Background(), boundFP, "cheating", "admin:1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBanDuplicateRollsBack(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO blacklist").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))
	mock.ExpectRollback()

	_, err := eng.Ban(context.Background(), boundFP, "cheating", "admin:1", nil)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckBlacklistHashesRawInput(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	raw := "DESKTOP-RAW|aa:bb:cc"
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WithArgs(utils.HashFingerprint(raw)).
		WillReturnError(sql.ErrNoRows)

	status, err := eng.CheckBlacklist(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, status.Banned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckBlacklistPassesDigestThrough(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WithArgs(boundFP).
		WillReturnRows(sqlmock.NewRows(blacklistCols).
			AddRow(1, boundFP, "shared account", "admin:2", "user-9", time.Now().UTC()))

	status, err := eng.CheckBlacklist(context.Background(), boundFP)
	require.NoError(t, err)
	assert.True(t, status.Banned)
	require.NotNil(t, status.Entry)
	assert.Equal(t, "shared account", status.Entry.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
