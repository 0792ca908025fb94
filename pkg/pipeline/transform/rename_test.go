package transform

import (
	"testing"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRename(t *testing.T) {
	fn := Rename(&RenameConfig{Fields: map[string]string{
		"msgId":  "messageId",
		"caller": "requester",
	}})

	out, err := fn(&record.Record{Value: map[string]any{
		"msgId":     "legacy-001",
		"caller":    "LegacyApp",
		"direction": "REQUEST",
	}})
	require.NoError(t, err)
	require.NotNil(t, out)

	value, ok := out.ValueMap()
	require.True(t, ok)
	assert.Equal(t, "legacy-001", value["messageId"])
	assert.Equal(t, "LegacyApp", value["requester"])
	assert.Equal(t, "REQUEST", value["direction"])
	assert.NotContains(t, value, "msgId")
	assert.NotContains(t, value, "caller")
}

func TestRenameExistingTargetWins(t *testing.T) {
	fn := Rename(&RenameConfig{Fields: map[string]string{"msgId": "messageId"}})

	out, err := fn(&record.Record{Value: map[string]any{
		"msgId":     "legacy-001",
		"messageId": "canonical-001",
	}})
	require.NoError(t, err)

	value, _ := out.ValueMap()
	assert.Equal(t, "canonical-001", value["messageId"])
}

func TestRenamePassThrough(t *testing.T) {
	fn := Rename(&RenameConfig{Fields: map[string]string{"msgId": "messageId"}})

	// Non-map values pass through untouched; auditschema decides their fate.
	in := &record.Record{Value: "not-a-map"}
	out, err := fn(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	nilValue := &record.Record{Value: nil}
	out, err = fn(nilValue)
	require.NoError(t, err)
	assert.Equal(t, nilValue, out)
}
