package transform

import (
	"testing"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedAuditSchema(t *testing.T) (Func, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	fn := AuditSchema(&AuditSchemaConfig{Logger: zap.New(core)})
	return fn, logs
}

func auditRecord(value any) *record.Record {
	return &record.Record{
		Topic:     "audit.events",
		Partition: 3,
		Offset:    42,
		Key:       []byte("test-001"),
		Timestamp: 1771138537000,
		Value:     value,
	}
}

func validValue() map[string]any {
	return map[string]any{
		"messageId": "test-001",
		"timestamp": float64(1771138537), // JSON numbers decode to float64
		"requester": "TestApp",
		"direction": "REQUEST",
		"metadata":  `{"key":"value"}`,
		"format":    "application/json",
	}
}

func TestAuditSchemaValid(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	out, err := fn(auditRecord(validValue()))
	require.NoError(t, err)
	require.NotNil(t, out)

	got, ok := out.Value.(*record.AuditRecord)
	require.True(t, ok, "value should be a mapped AuditRecord")

	assert.Equal(t, "test-001", got.MessageID)
	assert.Equal(t, int64(1771138537), got.Timestamp)
	assert.Equal(t, "TestApp", got.Requester)
	assert.Equal(t, record.DirectionRequest, got.Direction)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, `{"key":"value"}`, *got.Metadata)
	require.NotNil(t, got.Format)
	assert.Equal(t, "application/json", *got.Format)

	// Delivery metadata and key pass through unchanged.
	assert.Equal(t, "audit.events", out.Topic)
	assert.Equal(t, int32(3), out.Partition)
	assert.Equal(t, int64(42), out.Offset)
	assert.Equal(t, []byte("test-001"), out.Key)
	assert.Equal(t, int64(1771138537000), out.Timestamp)

	assert.Zero(t, logs.Len(), "valid records must not log")
}

func TestAuditSchemaOptionalFieldsAbsent(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	value := validValue()
	delete(value, "metadata")
	delete(value, "format")

	out, err := fn(auditRecord(value))
	require.NoError(t, err)
	require.NotNil(t, out)

	got := out.Value.(*record.AuditRecord)
	assert.Nil(t, got.Metadata, "absent metadata stays nil, not empty string")
	assert.Nil(t, got.Format, "absent format stays nil, not empty string")
	assert.Zero(t, logs.Len())
}

func TestAuditSchemaNilValue(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	out, err := fn(auditRecord(nil))
	require.NoError(t, err)
	assert.Nil(t, out, "nil value is a silent skip")
	assert.Zero(t, logs.Len(), "routine skips must not log")
}

func TestAuditSchemaValueNotAMap(t *testing.T) {
	for _, value := range []any{"not-a-map", []any{"a", "b"}, float64(7)} {
		fn, logs := newObservedAuditSchema(t)

		out, err := fn(auditRecord(value))
		require.NoError(t, err)
		assert.Nil(t, out)

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "skipping record: value is not a map", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "audit.events", fields["topic"])
		assert.Equal(t, int32(3), fields["partition"])
	}
}

func TestAuditSchemaMissingRequiredFields(t *testing.T) {
	testCases := []struct {
		name   string
		omit   []string
		reason string
	}{
		{"messageId missing", []string{"messageId"}, "Missing required field: messageId"},
		{"timestamp missing", []string{"timestamp"}, "Missing required field: timestamp"},
		{"requester missing", []string{"requester"}, "Missing required field: requester"},
		{"direction missing", []string{"direction"}, "Missing required field: direction"},
		// First missing field in check order wins, even when several are missing.
		{"messageId and requester missing", []string{"requester", "messageId"}, "Missing required field: messageId"},
		{"timestamp and direction missing", []string{"direction", "timestamp"}, "Missing required field: timestamp"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn, logs := newObservedAuditSchema(t)

			value := validValue()
			for _, field := range tc.omit {
				delete(value, field)
			}

			out, err := fn(auditRecord(value))
			require.NoError(t, err)
			assert.Nil(t, out)

			entries := logs.All()
			require.Len(t, entries, 1, "exactly one warning per dropped record")
			assert.Equal(t, zap.WarnLevel, entries[0].Level)
			assert.Equal(t, tc.reason, entries[0].ContextMap()["reason"])
		})
	}
}

func TestAuditSchemaInvalidDirection(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	value := validValue()
	value["direction"] = "SIDEWAYS"

	out, err := fn(auditRecord(value))
	require.NoError(t, err)
	assert.Nil(t, out)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t,
		"Invalid direction value: 'SIDEWAYS'. Must be one of: [REQUEST RESPONSE]",
		entries[0].ContextMap()["reason"])
}

func TestAuditSchemaTimestampCoercion(t *testing.T) {
	testCases := []struct {
		timestamp any
		name      string
		want      int64
		drop      bool
	}{
		{float64(1771138537), "json number", 1771138537, false},
		{int64(1771138537), "int64", 1771138537, false},
		{int(1771138537), "int", 1771138537, false},
		{"1771138537", "numeric string", 1771138537, false},
		{"-5", "negative numeric string", -5, false},
		{"abc", "non-numeric string", 0, true},
		{"123.45", "fractional string rejected by strict parse", 0, true},
		{"1e9", "scientific notation rejected by strict parse", 0, true},
		{"", "empty string", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn, logs := newObservedAuditSchema(t)

			value := validValue()
			value["timestamp"] = tc.timestamp

			out, err := fn(auditRecord(value))
			require.NoError(t, err)

			if tc.drop {
				assert.Nil(t, out)
				entries := logs.All()
				require.Len(t, entries, 1)
				reason, _ := entries[0].ContextMap()["reason"].(string)
				assert.Contains(t, reason, "Invalid timestamp value:")
				assert.Contains(t, reason, "Must be a numeric value")
				return
			}

			require.NotNil(t, out)
			assert.Equal(t, tc.want, out.Value.(*record.AuditRecord).Timestamp)
			assert.Zero(t, logs.Len())
		})
	}
}

func TestAuditSchemaInvalidTimestampReportsValue(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	value := validValue()
	value["timestamp"] = "abc"

	out, err := fn(auditRecord(value))
	require.NoError(t, err)
	assert.Nil(t, out)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t,
		"Invalid timestamp value: 'abc'. Must be a numeric value",
		entries[0].ContextMap()["reason"])
}

func TestAuditSchemaIdempotent(t *testing.T) {
	fn, logs := newObservedAuditSchema(t)

	first, err := fn(auditRecord(validValue()))
	require.NoError(t, err)
	second, err := fn(auditRecord(validValue()))
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Value, second.Value, "same input twice produces identical outputs")
	assert.NotSame(t, first.Value, second.Value, "each call constructs a fresh record")
	assert.Zero(t, logs.Len())
}
