package engine

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/visualscripts/license-api/internal/config"
	"github.com/visualscripts/license-api/internal/repository"
)

const boundFP = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
const otherFP = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
const scriptKey = "SCRP1111-SCRP2222-SCRP3333-SCRP4444"

func defaultPolicy() Policy {
	return Policy{
		AuthMode:          config.ModeShared,
		MismatchPolicy:    config.MismatchRebind,
		ResetCooldownDays: 7,
		MaxKeysPerBatch:   20,
	}
}

func newTestEngine(t *testing.T, p Policy) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := New(db,
		repository.NewSubscriberRepo(db),
		repository.NewKeyRepo(db),
		repository.NewBlacklistRepo(db),
		repository.NewScriptRepo(db),
		repository.NewActivityRepo(db),
		repository.NewDeviceRepo(db),
		p, nil)
	return eng, mock
}

var subscriberCols = []string{
	"id", "external_id", "username", "hwid", "license_key",
	"is_active", "expiry_date", "created_at", "last_reset",
}

// subscriberRow builds one result row for the subscribers SELECT.
func subscriberRow(externalID string, hwid interface{}, active bool, expiry interface{}, lastReset interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(subscriberCols).
		AddRow(1, externalID, externalID, hwid, nil, active, expiry, time.Now().UTC(), lastReset)
}

var scriptCols = []string{"id", "name", "description", "script_key", "script_url", "version", "created_at"}

func scriptRow() *sqlmock.Rows {
	return sqlmock.NewRows(scriptCols).
		AddRow(1, "loader", "", scriptKey, "https://cdn.example.com/loader.lua", "1.4.2", time.Now().UTC())
}

var blacklistCols = []string{"id", "hwid", "reason", "blacklisted_by", "external_id", "created_at"}

// expectScriptLookup queues the shared-mode credential resolution.
func expectScriptLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM scripts WHERE script_key").
		WillReturnRows(scriptRow())
}

func expectSubscriberLookup(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery("SELECT (.+) FROM subscribers WHERE external_id").
		WillReturnRows(rows)
}

func expectNotBlacklisted(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WillReturnError(sql.ErrNoRows)
}

func expectJournal(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO activity_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

func expectDeviceTouch(mock sqlmock.Sqlmock) {
	mock.ExpectExec("INSERT INTO hwid_registry").
		WillReturnResult(sqlmock.NewResult(1, 1))
}
