package transform

import (
	"testing"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		config  FilterConfig
		wantErr bool
	}{
		{"no criteria", FilterConfig{}, true},
		{"topics only", FilterConfig{Topics: []string{"audit.events"}}, false},
		{"valid pattern", FilterConfig{TopicPattern: `^audit\..*`}, false},
		{"invalid pattern", FilterConfig{TopicPattern: `[`}, true},
		{"valid direction", FilterConfig{Directions: []string{"REQUEST"}}, false},
		{"invalid direction", FilterConfig{Directions: []string{"SIDEWAYS"}}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterByTopic(t *testing.T) {
	testCases := []struct {
		name   string
		config FilterConfig
		topic  string
		pass   bool
	}{
		{"exact match", FilterConfig{Topics: []string{"audit.events"}}, "audit.events", true},
		{"exact mismatch", FilterConfig{Topics: []string{"audit.events"}}, "other.events", false},
		{"glob match", FilterConfig{Topics: []string{"audit.*"}}, "audit.events", true},
		{"excluded", FilterConfig{ExcludeTopics: []string{"audit.internal"}}, "audit.internal", false},
		{"not excluded", FilterConfig{ExcludeTopics: []string{"audit.internal"}}, "audit.events", true},
		{"pattern match", FilterConfig{TopicPattern: `^audit\.`}, "audit.events", true},
		{"pattern mismatch", FilterConfig{TopicPattern: `^audit\.`}, "metrics.events", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn := Filter(&tc.config)

			out, err := fn(&record.Record{Topic: tc.topic, Value: validValue()})
			require.NoError(t, err)
			if tc.pass {
				assert.NotNil(t, out)
			} else {
				assert.Nil(t, out)
			}
		})
	}
}

func TestFilterByDirection(t *testing.T) {
	fn := Filter(&FilterConfig{Directions: []string{record.DirectionRequest}})

	req, err := fn(&record.Record{Topic: "audit.events", Value: validValue()})
	require.NoError(t, err)
	assert.NotNil(t, req)

	resp := validValue()
	resp["direction"] = "RESPONSE"
	out, err := fn(&record.Record{Topic: "audit.events", Value: resp})
	require.NoError(t, err)
	assert.Nil(t, out)

	// Direction filtering also applies after the auditschema mapping.
	mapped, err := fn(&record.Record{
		Topic: "audit.events",
		Value: &record.AuditRecord{MessageID: "x", Direction: record.DirectionRequest},
	})
	require.NoError(t, err)
	assert.NotNil(t, mapped)

	// Records without a readable direction are dropped when filtering on it.
	out, err = fn(&record.Record{Topic: "audit.events", Value: map[string]any{"messageId": "x"}})
	require.NoError(t, err)
	assert.Nil(t, out)
}
