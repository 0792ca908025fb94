package transform

import (
	"testing"

	"github.com/archiver/auditpipe/internal/testutil"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain(t *testing.T) {
	value, err := testutil.LoadJSON("audit.json")
	require.NoError(t, err, "failed to load test data")

	manager := NewManager()
	manager.RegisterBuiltins()

	chain, err := manager.Chain([]Transformation{
		{Type: "rename", Config: map[string]any{
			"fields": map[string]string{"msgId": "messageId"},
		}},
		{Type: "auditschema"},
	})
	require.NoError(t, err)

	out, err := chain(&record.Record{Topic: "audit.events", Value: value})
	require.NoError(t, err)
	require.NotNil(t, out)

	got, ok := out.Value.(*record.AuditRecord)
	require.True(t, ok)
	assert.Equal(t, "test-001", got.MessageID)
	assert.Equal(t, int64(1771138537), got.Timestamp)
	assert.Equal(t, "TestApp", got.Requester)
	assert.Equal(t, record.DirectionRequest, got.Direction)
}

func TestChainDropStopsProcessing(t *testing.T) {
	manager := NewManager()
	manager.RegisterBuiltins()

	chain, err := manager.Chain([]Transformation{
		{Type: "filter", Config: map[string]any{"topics": []string{"audit.events"}}},
		{Type: "auditschema"},
	})
	require.NoError(t, err)

	out, err := chain(&record.Record{Topic: "other.events", Value: validValue()})
	require.NoError(t, err)
	assert.Nil(t, out, "a drop in the chain yields no output and no error")
}

func TestChainUnknownType(t *testing.T) {
	manager := NewManager()
	manager.RegisterBuiltins()

	_, err := manager.Chain([]Transformation{{Type: "nope"}})
	assert.Error(t, err)
}
