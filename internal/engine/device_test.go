package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualscripts/license-api/internal/repository"
	"github.com/visualscripts/license-api/internal/utils"
)

func TestResetDeviceClearsBinding(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectBegin()
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, nil))
	mock.ExpectQuery("SELECT hwid FROM subscribers WHERE external_id").
		WillReturnRows(sqlmock.NewRows([]string{"hwid"}).AddRow(boundFP))
	mock.ExpectExec("UPDATE subscribers SET hwid = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectJournal(mock)

	out, err := eng.ResetDevice(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, boundFP, out.Cleared)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDeviceCooldownBlocks(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	lastReset := time.Now().UTC().Add(-48 * time.Hour) // 2 of 7 days elapsed
	mock.ExpectBegin()
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, lastReset))
	mock.ExpectRollback()

	out, err := eng.ResetDevice(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.Equal(t, 5, out.DaysRemaining)
	assert.WithinDuration(t, lastReset.Add(7*24*time.Hour), out.NextAllowedAt, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDeviceCooldownElapsed(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	lastReset := time.Now().UTC().Add(-8 * 24 * time.Hour)
	mock.ExpectBegin()
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, lastReset))
	mock.ExpectQuery("SELECT hwid FROM subscribers WHERE external_id").
		WillReturnRows(sqlmock.NewRows([]string{"hwid"}).AddRow(boundFP))
	mock.ExpectExec("UPDATE subscribers SET hwid = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectJournal(mock)

	_, err := eng.ResetDevice(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDeviceNothingBound(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectBegin()
	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, nil))
	mock.ExpectRollback()

	_, err := eng.ResetDevice(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrNoDeviceBound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDeviceNothingBoundOutranksCooldown(t *testing.T) {
	// Right after a reset the row has a recent last_reset and no device.
	// A second reset must report that nothing is bound, not a cooldown.
	eng, mock := newTestEngine(t, defaultPolicy())

	lastReset := time.Now().UTC().Add(-1 * time.Hour)
	mock.ExpectBegin()
	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, lastReset))
	mock.ExpectRollback()

	_, err := eng.ResetDevice(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrNoDeviceBound)
	assert.NotErrorIs(t, err, ErrCooldownActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDeviceBlacklistedRollsBack(t *testing.T) {
	// The blacklist verdict is read in the binding transaction, so a
	// banned device's write never commits.
	eng, mock := newTestEngine(t, defaultPolicy())

	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WillReturnRows(sqlmock.NewRows(blacklistCols).
			AddRow(1, boundFP, "cheating", "admin:1", nil, time.Now().UTC()))
	expectJournal(mock)
	mock.ExpectRollback()

	d, err := eng.RegisterDevice(context.Background(), "user-1", boundFP)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBlacklisted, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDeviceHashesRawFingerprint(t *testing.T) {
	// A raw machine identifier is canonicalized before any query; the
	// digest, not the raw value, hits the database.
	eng, mock := newTestEngine(t, defaultPolicy())

	raw := "DESKTOP-RAW|aa:bb:cc"
	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WithArgs(utils.HashFingerprint(raw), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WithArgs(utils.HashFingerprint(raw)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()
	expectDeviceTouch(mock)
	expectJournal(mock)

	d, err := eng.RegisterDevice(context.Background(), "user-1", raw)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
