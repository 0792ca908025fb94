package debug

import (
	"encoding/json"

	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"go.uber.org/zap"
)

// PeerDebug is a debug peer that logs records instead of persisting them
type PeerDebug struct {
	logger *zap.Logger
}

func (p *PeerDebug) Pub(rec record.Record, _ ...any) error {
	logger := p.logger
	if logger == nil {
		logger = zap.L()
	}
	logger.Info("debug sink",
		zap.String("topic", rec.Topic),
		zap.Int32("partition", rec.Partition),
		zap.Int64("offset", rec.Offset),
		zap.ByteString("key", rec.Key),
		zap.Any("value", rec.Value))
	return nil
}

func (p *PeerDebug) Connect(_ json.RawMessage, _ ...any) error {
	p.logger, _ = zap.NewProduction()
	return nil
}

func (p *PeerDebug) Sub(_ ...any) (<-chan record.Record, error) {
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerDebug) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerDebug) Disconnect() error {
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorDebug, &PeerDebug{})
}
