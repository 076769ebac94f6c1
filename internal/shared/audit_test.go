package shared

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	sql  string
	args []any
}

func (e *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql = sql
	e.args = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecord(t *testing.T) {
	db := &recordingExecer{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{
		ActorID:  7,
		Action:   AuditUserCreated,
		Entity:   "user",
		EntityID: "b6c1",
		Meta:     map[string]any{"company": "acme"},
	})
	require.NoError(t, err)
	require.Len(t, db.args, 6)
	assert.Contains(t, db.sql, "INSERT INTO audit_logs")
	assert.Equal(t, int64(7), db.args[0])
	assert.Equal(t, AuditUserCreated, db.args[1])

	var meta map[string]any
	require.NoError(t, json.Unmarshal(db.args[4].([]byte), &meta))
	assert.Equal(t, "acme", meta["company"])
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	logger := NewAuditLogger(&recordingExecer{})
	err := logger.Record(context.Background(), AuditLog{Action: AuditUserFired, Entity: "user"})
	assert.Error(t, err)

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "forbidden", UserSafeMessage(ErrForbidden))
	assert.Equal(t, "invalid username or password", UserSafeMessage(ErrInvalidCredentials))
	assert.Equal(t, "unexpected error, please try again", UserSafeMessage(assert.AnError))
	assert.Empty(t, UserSafeMessage(nil))
}
