package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualscripts/license-api/internal/config"
)

func TestVerifyAccessUnknownScriptKey(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	mock.ExpectQuery("SELECT (.+) FROM scripts WHERE script_key").
		WillReturnError(sql.ErrNoRows)
	expectJournal(mock)

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: "WRONG-KEY", Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonInvalidCredential, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessRevokedBeforeBlacklist(t *testing.T) {
	// An inactive subscriber is reported REVOKED without the blacklist
	// ever being consulted; the precedence is fixed.
	eng, mock := newTestEngine(t, defaultPolicy())

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, false, nil, nil))
	expectJournal(mock)

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRevoked, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessExpired(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	past := time.Now().UTC().Add(-24 * time.Hour)
	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, past, nil))
	expectJournal(mock)

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessBlacklistedDevice(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT hwid FROM subscribers WHERE external_id").
		WillReturnRows(sqlmock.NewRows([]string{"hwid"}).AddRow(boundFP))
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WillReturnRows(sqlmock.NewRows(blacklistCols).
			AddRow(1, boundFP, "cheating", "admin:1", nil, time.Now().UTC()))
	expectJournal(mock)
	mock.ExpectRollback()

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonBlacklisted, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessBanLandingMidFlightRollsBackBinding(t *testing.T) {
	// The blacklist is read inside the binding transaction. A ban that
	// commits while the request is in flight is visible to that read, so
	// the freshly written binding rolls back and no grant is issued.
	eng, mock := newTestEngine(t, defaultPolicy())

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM blacklist WHERE hwid").
		WillReturnRows(sqlmock.NewRows(blacklistCols).
			AddRow(1, boundFP, "banned mid-flight", "admin:1", nil, time.Now().UTC()))
	expectJournal(mock)
	mock.ExpectRollback()

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBlacklisted, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessGrantsAndBindsFirstUse(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", nil, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectNotBlacklisted(mock)
	mock.ExpectCommit()

	expectDeviceTouch(mock)
	expectJournal(mock) // HWID_BOUND
	expectJournal(mock) // VERIFY_OK

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonValid, d.Reason)
	assert.Equal(t, "https://cdn.example.com/loader.lua", d.ScriptURL)
	assert.Equal(t, "1.4.2", d.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessMismatchDenyPolicy(t *testing.T) {
	p := defaultPolicy()
	p.MismatchPolicy = config.MismatchDeny
	eng, mock := newTestEngine(t, p)

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT hwid FROM subscribers WHERE external_id").
		WillReturnRows(sqlmock.NewRows([]string{"hwid"}).AddRow(boundFP))
	expectNotBlacklisted(mock)
	expectJournal(mock)
	mock.ExpectRollback()

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: otherFP,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDeviceMismatch, d.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessMismatchRebindPolicy(t *testing.T) {
	eng, mock := newTestEngine(t, defaultPolicy())

	expectScriptLookup(mock)
	expectSubscriberLookup(mock, subscriberRow("user-1", boundFP, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT hwid FROM subscribers WHERE external_id").
		WillReturnRows(sqlmock.NewRows([]string{"hwid"}).AddRow(boundFP))
	expectNotBlacklisted(mock)
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectDeviceTouch(mock)
	expectJournal(mock) // DEVICE_CHANGED
	expectJournal(mock) // VERIFY_OK

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		ExternalID: "user-1", Credential: scriptKey, Fingerprint: otherFP,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyAccessPersonalModeResolvesByCredential(t *testing.T) {
	p := defaultPolicy()
	p.AuthMode = config.ModePersonal
	eng, mock := newTestEngine(t, p)

	mock.ExpectQuery("SELECT (.+) FROM subscribers WHERE license_key").
		WillReturnRows(subscriberRow("user-7", nil, true, nil, nil))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscribers SET hwid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectNotBlacklisted(mock)
	mock.ExpectCommit()

	expectDeviceTouch(mock)
	expectJournal(mock)
	expectJournal(mock)

	d, err := eng.VerifyAccess(context.Background(), VerifyInput{
		Credential: "AAAA1111-BBBB2222-CCCC3333-DDDD4444", Fingerprint: boundFP,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.ScriptURL) // personal mode carries no script payload
	assert.NoError(t, mock.ExpectationsWereMet())
}
