package record

// Record is one message unit flowing through a pipeline: a key, a decoded
// value and the delivery metadata supplied by the source broker.
type Record struct {
	// Topic (Kafka topic, NATS subject, MQTT topic) the record arrived on.
	Topic string
	// Partition index within the topic. Brokers without partitions report 0.
	Partition int32
	// Offset of the record within its partition, when the broker tracks one.
	Offset int64
	// Key is the broker-level message key, passed through unchanged.
	Key []byte
	// Timestamp is the broker timestamp in milliseconds since epoch.
	Timestamp int64
	// Value is the decoded message body. nil means the broker delivered no
	// value (e.g. a tombstone). A JSON object decodes to map[string]any;
	// other JSON shapes decode to their natural Go types.
	Value any
}

// WithValue returns a copy of r carrying v as its value. Key and delivery
// metadata are preserved so downstream stages see the original provenance.
func (r *Record) WithValue(v any) *Record {
	out := *r
	out.Value = v
	return &out
}

// ValueMap returns the record value as a string-keyed map, or false when the
// value is absent or has another shape.
func (r *Record) ValueMap() (map[string]any, bool) {
	m, ok := r.Value.(map[string]any)
	return m, ok
}
