package mqtt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// PeerMQTT implements the source and sink functionality for MQTT
type PeerMQTT struct {
	*Client
	Config Config
}

type Config struct {
	Servers       []string `json:"servers"`
	TopicPrefix   string   `json:"topicPrefix"`
	ClientOptions `json:"clientOptions"`
}

func (p *PeerMQTT) Connect(config json.RawMessage, args ...any) error {
	var cfg Config

	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal MQTT config: %w", err)
	}

	opts := cfg.ClientOptions

	for _, server := range cfg.Servers {
		u, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("failed to parse server URL %s: %w", server, err)
		}
		opts.Servers = append(opts.Servers, u)
	}

	p.Config = cfg
	p.Config.TopicPrefix = cmp.Or(cfg.TopicPrefix, "audit")

	mqttOpts, err := convertToPahoOptions(&opts)
	if err != nil {
		return err
	}

	setDefaultOptions(mqttOpts)

	p.Client = NewClient(mqttOpts)

	if err := p.Client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

func (p *PeerMQTT) Pub(rec record.Record, args ...any) error {
	topic := fmt.Sprintf("%s/events", p.Config.TopicPrefix)

	data, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal record value: %w", err)
	}

	return p.Client.Publish(topic, 0, false, data)
}

// Sub subscribes to `prefix/#` and converts each message into a pipeline
// record. The full MQTT topic becomes the record topic; payloads that are
// not valid JSON are carried as raw strings so the transformation chain can
// report them.
func (p *PeerMQTT) Sub(args ...any) (<-chan record.Record, error) {
	prefix := p.Config.TopicPrefix
	if len(args) > 0 {
		if prefixArg, ok := args[0].(string); ok && prefixArg != "" {
			prefix = strings.Trim(prefixArg, "/")
		}
	}

	filter := prefix + "/#"
	records := make(chan record.Record, 100)

	err := p.Client.Subscribe(filter, 0, func(_ mqtt.Client, msg mqtt.Message) {
		rec := record.Record{
			Topic:     msg.Topic(),
			Offset:    int64(msg.MessageID()),
			Timestamp: time.Now().UnixMilli(),
		}

		if payload := msg.Payload(); len(payload) > 0 {
			var value any
			if err := json.Unmarshal(payload, &value); err != nil {
				rec.Value = string(payload)
			} else {
				rec.Value = value
			}
		}

		select {
		case records <- rec:
		default:
			p.logger.Warn("record channel full, dropping message",
				zap.String("topic", msg.Topic()))
		}
	})
	if err != nil {
		close(records)
		return nil, fmt.Errorf("mqtt subscribe failed: %w", err)
	}

	return records, nil
}

func (p *PeerMQTT) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

func (p *PeerMQTT) Disconnect() error {
	p.client.Disconnect(500)
	return nil
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorMQTT, &PeerMQTT{})
}
