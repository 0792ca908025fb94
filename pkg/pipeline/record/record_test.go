package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidDirection(t *testing.T) {
	assert.True(t, ValidDirection(DirectionRequest))
	assert.True(t, ValidDirection(DirectionResponse))
	assert.False(t, ValidDirection("request"))
	assert.False(t, ValidDirection("SIDEWAYS"))
	assert.False(t, ValidDirection(""))
}

func TestWithValue(t *testing.T) {
	orig := &Record{
		Topic:     "audit.events",
		Partition: 2,
		Offset:    42,
		Key:       []byte("k1"),
		Timestamp: 1724580000000,
		Value:     map[string]any{"messageId": "a"},
	}

	out := orig.WithValue("replaced")

	assert.Equal(t, "replaced", out.Value)
	assert.Equal(t, orig.Topic, out.Topic)
	assert.Equal(t, orig.Partition, out.Partition)
	assert.Equal(t, orig.Offset, out.Offset)
	assert.Equal(t, orig.Key, out.Key)
	assert.Equal(t, orig.Timestamp, out.Timestamp)

	// original is untouched
	assert.Equal(t, map[string]any{"messageId": "a"}, orig.Value)
}

func TestValueMap(t *testing.T) {
	rec := &Record{Value: map[string]any{"messageId": "a"}}
	m, ok := rec.ValueMap()
	require.True(t, ok)
	assert.Equal(t, "a", m["messageId"])

	for _, value := range []any{nil, "raw string", 42.0, []any{"x"}} {
		rec := &Record{Value: value}
		_, ok := rec.ValueMap()
		assert.False(t, ok)
	}
}

func TestAuditRecordJSON(t *testing.T) {
	meta := `{"client":"cli"}`
	rec := AuditRecord{
		MessageID: "a1b2",
		Timestamp: 1724580000000,
		Requester: "billing-svc",
		Direction: DirectionRequest,
		Metadata:  &meta,
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"messageId": "a1b2",
		"timestamp": 1724580000000,
		"requester": "billing-svc",
		"direction": "REQUEST",
		"metadata": "{\"client\":\"cli\"}"
	}`, string(data))

	// optional fields absent entirely, not empty
	rec.Metadata = nil
	data, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "metadata")
	assert.NotContains(t, string(data), "format")
}
