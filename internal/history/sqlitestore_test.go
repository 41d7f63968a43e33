package history

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

func newMockPersistence(t *testing.T) (*SQLitePersistence, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLitePersistence{db: db, sessionID: "s1"}, mock
}

func partsJSON(t *testing.T, parts []protocol.Part) string {
	t.Helper()
	raw, err := json.Marshal(parts)
	require.NoError(t, err)
	return string(raw)
}

func TestLoadReconstructsEntriesInSequenceOrder(t *testing.T) {
	p, mock := newMockPersistence(t)

	userParts := []protocol.Part{protocol.NewText("hello")}
	modelParts := []protocol.Part{protocol.NewText("hi")}
	mock.ExpectQuery("SELECT role, parts_json FROM history_entries").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "parts_json"}).
			AddRow("user", partsJSON(t, userParts)).
			AddRow("model", partsJSON(t, modelParts)))

	log, err := p.Load()
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, protocol.RoleUser, log[0].Role)
	assert.Equal(t, "hello", log[0].Parts[0].Text)
	assert.Equal(t, protocol.RoleModel, log[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRejectsMalformedPartsJSON(t *testing.T) {
	p, mock := newMockPersistence(t)

	mock.ExpectQuery("SELECT role, parts_json FROM history_entries").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "parts_json"}).
			AddRow("user", "{not json"))

	_, err := p.Load()
	assert.Error(t, err)
}

func TestSaveAllReplacesTranscriptInOneTransaction(t *testing.T) {
	p, mock := newMockPersistence(t)

	log := []protocol.Content{
		{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText("a")}},
		{Role: protocol.RoleModel, Parts: []protocol.Part{protocol.NewText("b")}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM history_entries").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO history_entries").
		WithArgs("s1", 0, "user", partsJSON(t, log[0].Parts)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO history_entries").
		WithArgs("s1", 1, "model", partsJSON(t, log[1].Parts)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, p.SaveAll(log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAllRollsBackOnInsertFailure(t *testing.T) {
	p, mock := newMockPersistence(t)

	log := []protocol.Content{
		{Role: protocol.RoleUser, Parts: []protocol.Part{protocol.NewText("a")}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM history_entries").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO history_entries").
		WithArgs("s1", 0, "user", partsJSON(t, log[0].Parts)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := p.SaveAll(log)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAllEmptyLogClearsTranscript(t *testing.T) {
	p, mock := newMockPersistence(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM history_entries").
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, p.SaveAll(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
