package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/archiver/auditpipe/pkg/util"
)

var errNotConnected = errors.New("not connected")

// PeerClickHouse is an analytical sink for mapped audit records. Rows are
// written into a ReplacingMergeTree keyed on messageId, so replayed
// messages collapse to one row the same way the relational sink's upsert
// does.
type PeerClickHouse struct {
	conn   driver.Conn
	config *clickhouse.Options
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS audit_records (
	messageId String,
	timestamp Int64,
	requester String,
	direction Enum8('REQUEST' = 1, 'RESPONSE' = 2),
	metadata  Nullable(String),
	format    Nullable(String)
) ENGINE = ReplacingMergeTree
ORDER BY messageId`

const insertSQL = `INSERT INTO audit_records (messageId, timestamp, requester, direction, metadata, format)
VALUES (?, ?, ?, ?, ?, ?)`

func (p *PeerClickHouse) Connect(config json.RawMessage, args ...any) error {
	p.config = &clickhouse.Options{}

	if config != nil {
		if err := json.Unmarshal(config, p.config); err != nil {
			return fmt.Errorf("failed to parse ClickHouse config: %w", err)
		}
	}

	// Set values from environment variables or use defaults
	if len(p.config.Addr) == 0 {
		p.config.Addr = []string{util.GetEnvOrDefault("AUDITPIPE_CLICKHOUSE_ADDR", "localhost:9000")}
	}
	if p.config.Auth.Database == "" {
		p.config.Auth.Database = util.GetEnvOrDefault("AUDITPIPE_CLICKHOUSE_AUTH_DATABASE", "default")
	}
	if p.config.Auth.Username == "" {
		p.config.Auth.Username = util.GetEnvOrDefault("AUDITPIPE_CLICKHOUSE_AUTH_USERNAME", "default")
	}
	if p.config.Auth.Password == "" {
		p.config.Auth.Password = util.GetEnvOrDefault("AUDITPIPE_CLICKHOUSE_AUTH_PASSWORD", "")
	}

	conn, err := clickhouse.Open(p.config)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to ensure audit_records table: %w", err)
	}

	p.conn = conn
	return nil
}

func (p *PeerClickHouse) Pub(rec record.Record, args ...any) error {
	if p.conn == nil {
		return errNotConnected
	}

	audit, ok := rec.Value.(*record.AuditRecord)
	if !ok {
		return fmt.Errorf("record value does not conform to the audit schema (got %T)", rec.Value)
	}

	err := p.conn.Exec(context.Background(), insertSQL,
		audit.MessageID,
		audit.Timestamp,
		audit.Requester,
		audit.Direction,
		audit.Metadata,
		audit.Format,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", audit.MessageID, err)
	}
	return nil
}

func (p *PeerClickHouse) Sub(args ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerClickHouse) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerClickHouse) Disconnect() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorClickHouse, &PeerClickHouse{})
}
