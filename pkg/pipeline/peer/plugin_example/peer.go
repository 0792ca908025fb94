// Example connector plugin. Build with -buildmode=plugin and load via
// Manager.RegisterConnectorPlugin to add sinks without recompiling auditpipe.
package main

import (
	"encoding/json"
	"log"

	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
)

type PeerExample struct{}

func (p *PeerExample) Connect(config json.RawMessage, args ...any) error {
	log.Println("example connector plugin init", config)
	return nil
}

func (p *PeerExample) Pub(rec record.Record, args ...any) error {
	log.Println("example connector plugin publish", rec.Topic, rec.Value)
	return nil
}

func (p *PeerExample) Sub(args ...any) (<-chan record.Record, error) {
	// for pub-only peers (sinks), or implement for sub/pubsub peers
	return nil, pipeline.ErrConnectorTypeMismatch
}

func (p *PeerExample) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePub
}

func (p *PeerExample) Disconnect() error {
	return nil
}

var Connector pipeline.Connector = &PeerExample{}

// main is unused; required so the package links when built without -buildmode=plugin.
func main() {}
