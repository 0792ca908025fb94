package pg

import (
	"strings"
	"testing"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
)

func TestUpsertSQL(t *testing.T) {
	sql := upsertSQL("audit_records")
	assert.Contains(t, sql, `INSERT INTO "audit_records"`)
	assert.Contains(t, sql, `ON CONFLICT ("messageId") DO UPDATE SET`)
	// Every non-key column is updated on conflict.
	for _, col := range []string{`"timestamp"`, "requester", "direction", "metadata", "format"} {
		assert.Contains(t, sql, col+" ")
	}
}

func TestCreateTableSQLQuotesIdentifier(t *testing.T) {
	sql := createTableSQL(`evil"; DROP TABLE users; --`)
	assert.True(t, strings.HasPrefix(sql, `CREATE TABLE IF NOT EXISTS "evil""; DROP TABLE users; --"`))
}

func TestPubRejectsUnmappedValue(t *testing.T) {
	p := &PeerPG{pool: nil}
	err := p.Pub(record.Record{Value: map[string]any{"messageId": "x"}})
	assert.ErrorIs(t, err, errNotConnected)
}
