package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNotConnected = errors.New("not connected")

// defaultTable is the audit table the sink writes to.
const defaultTable = "audit_records"

// PeerPG is the relational sink: each record's value must conform to the
// fixed audit schema and is upserted keyed on messageId.
type PeerPG struct {
	pool *pgxpool.Pool
	cfg  Config
}

type Config struct {
	ConnString string `json:"connString"`
	// Table defaults to audit_records
	Table string `json:"table,omitempty"`
	// EnsureTable creates the audit table on connect when it does not exist
	EnsureTable bool `json:"ensureTable,omitempty"`
}

func (p *PeerPG) Connect(config json.RawMessage, _ ...any) error {
	if err := json.Unmarshal(config, &p.cfg); err != nil {
		return fmt.Errorf("config parse: %w", err)
	}
	if p.cfg.Table == "" {
		p.cfg.Table = defaultTable
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, p.cfg.ConnString)
	if err != nil {
		return err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("error connecting to database: %w", err)
	}

	if p.cfg.EnsureTable {
		if _, err = pool.Exec(ctx, createTableSQL(p.cfg.Table)); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ensure table %s: %w", p.cfg.Table, err)
		}
	}

	p.pool = pool
	return nil
}

func (p *PeerPG) Pub(rec record.Record, _ ...any) error {
	if p.pool == nil {
		return errNotConnected
	}

	audit, ok := rec.Value.(*record.AuditRecord)
	if !ok {
		return fmt.Errorf("record value does not conform to the audit schema (got %T)", rec.Value)
	}

	_, err := p.pool.Exec(context.Background(), upsertSQL(p.cfg.Table),
		audit.MessageID,
		audit.Timestamp,
		audit.Requester,
		audit.Direction,
		audit.Metadata,
		audit.Format,
	)
	if err != nil {
		return fmt.Errorf("upsert audit record %s: %w", audit.MessageID, err)
	}
	return nil
}

func (p *PeerPG) Sub(_ ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerPG) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerPG) Disconnect() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// createTableSQL mirrors the table the JDBC sink connector would manage:
// messageId is the primary key, direction is constrained to the enum, and
// the optional columns are nullable.
func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"messageId" varchar(36) PRIMARY KEY,
	"timestamp" bigint NOT NULL,
	requester   varchar(255) NOT NULL,
	direction   varchar(10) NOT NULL CHECK (direction IN ('REQUEST', 'RESPONSE')),
	metadata    jsonb,
	format      varchar(255)
)`, pgx.Identifier{table}.Sanitize())
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s ("messageId", "timestamp", requester, direction, metadata, format)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT ("messageId") DO UPDATE SET
	"timestamp" = EXCLUDED."timestamp",
	requester   = EXCLUDED.requester,
	direction   = EXCLUDED.direction,
	metadata    = EXCLUDED.metadata,
	format      = EXCLUDED.format`, pgx.Identifier{table}.Sanitize())
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorPostgres, &PeerPG{})
}
