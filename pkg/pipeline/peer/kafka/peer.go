package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/archiver/auditpipe/pkg/pipeline"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"go.uber.org/zap"
)

var errNotConnected = errors.New("Kafka peer not initialized")

// PeerKafka implements the source and sink for Kafka
type PeerKafka struct {
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup
	config        *Config
	logger        *zap.Logger
	cancel        context.CancelFunc
}

func (p *PeerKafka) Connect(config json.RawMessage, args ...any) error {
	var cfg Config
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("failed to unmarshal Kafka config: %w", err)
	}

	// Set defaults if not provided
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = []string{"audit.events"}
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "auditpipe.ingest"
	}
	if cfg.Version == "" {
		cfg.Version = "2.1.1"
	}
	if cfg.Partitions == 0 {
		cfg.Partitions = 1
	}
	if cfg.Replicas == 0 {
		cfg.Replicas = 1
	}
	if cfg.RetentionMS == 0 {
		cfg.RetentionMS = 7 * 24 * 60 * 60 * 1000 // 7 days
	}

	saramaConfig, err := cfg.ToSaramaConfig()
	if err != nil {
		return err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	p.producer = producer
	p.consumerGroup = consumerGroup
	p.config = &cfg
	p.logger, _ = zap.NewProduction()

	// Create admin client for topic management
	admin, err := sarama.NewClusterAdmin(cfg.Brokers, saramaConfig)
	if err != nil {
		p.close()
		return fmt.Errorf("failed to create cluster admin: %w", err)
	}
	defer admin.Close()

	// Ensure source topics exist
	if err := p.ensureTopics(admin); err != nil {
		p.close()
		return fmt.Errorf("failed to ensure topics: %w", err)
	}

	return nil
}

func (p *PeerKafka) Pub(rec record.Record, args ...any) error {
	if p.producer == nil {
		return errNotConnected
	}

	topic := p.config.Topic
	if topic == "" {
		topic = rec.Topic
	}
	if topic == "" {
		return fmt.Errorf("no topic configured and record carries none")
	}

	data, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal record value: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	if key := messageKey(rec); key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("Published message",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return nil
}

// Sub joins the consumer group on the configured topics and streams decoded
// records until Disconnect or a fatal consumer error.
func (p *PeerKafka) Sub(args ...any) (<-chan record.Record, error) {
	if p.consumerGroup == nil {
		return nil, errNotConnected
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	records := make(chan record.Record, 100)
	handler := &consumerGroupHandler{records: records, logger: p.logger}

	go func() {
		defer close(records)
		for {
			// Consume returns on rebalance; loop to rejoin the group.
			if err := p.consumerGroup.Consume(ctx, p.config.Topics, handler); err != nil {
				p.logger.Error("Consumer group error", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return records, nil
}

func (p *PeerKafka) Type() pipeline.ConnectorType {
	return pipeline.ConnectorTypePubSub
}

func (p *PeerKafka) Disconnect() error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.close()
}

func (p *PeerKafka) close() error {
	var errs []error
	if p.producer != nil {
		errs = append(errs, p.producer.Close())
	}
	if p.consumerGroup != nil {
		errs = append(errs, p.consumerGroup.Close())
	}
	return errors.Join(errs...)
}

func (p *PeerKafka) ensureTopics(admin sarama.ClusterAdmin) error {
	topics, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	for _, topic := range p.config.Topics {
		if _, exists := topics[topic]; exists {
			continue
		}

		topicDetail := &sarama.TopicDetail{
			NumPartitions:     p.config.Partitions,
			ReplicationFactor: p.config.Replicas,
			ConfigEntries: map[string]*string{
				"retention.ms": stringPtr(fmt.Sprintf("%d", p.config.RetentionMS)),
			},
		}

		if err := admin.CreateTopic(topic, topicDetail, false); err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}

		p.logger.Info("Created topic", zap.String("topic", topic))
	}

	return nil
}

// messageKey picks the outgoing message key: the record's own key when
// present, otherwise the audit messageId so compacted topics key on the
// same identifier the relational sink upserts on.
func messageKey(rec record.Record) []byte {
	if len(rec.Key) > 0 {
		return rec.Key
	}
	if audit, ok := rec.Value.(*record.AuditRecord); ok {
		return []byte(audit.MessageID)
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}

// consumerGroupHandler adapts consumer-group messages to pipeline records.
type consumerGroupHandler struct {
	records chan<- record.Record
	logger  *zap.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		select {
		case h.records <- decodeMessage(msg):
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}

// decodeMessage builds a pipeline record from a Kafka message. The value is
// decoded as JSON when possible; otherwise the raw string is carried so the
// transformation chain can report the malformed shape with full context.
func decodeMessage(msg *sarama.ConsumerMessage) record.Record {
	rec := record.Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Timestamp: msg.Timestamp.UnixMilli(),
	}

	if len(msg.Value) == 0 {
		return rec // tombstone: absent value
	}

	var value any
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		rec.Value = string(msg.Value)
		return rec
	}
	rec.Value = value
	return rec
}

func init() {
	pipeline.RegisterConnector(pipeline.ConnectorKafka, &PeerKafka{})
}
