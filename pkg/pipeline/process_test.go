package pipeline

import (
	"testing"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/archiver/auditpipe/pkg/pipeline/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAuditValue() map[string]any {
	return map[string]any{
		"messageId": "a1b2c3",
		"timestamp": float64(1724580000000),
		"requester": "billing-svc",
		"direction": record.DirectionRequest,
	}
}

func TestApplyTransformationsEmpty(t *testing.T) {
	rec := &record.Record{Topic: "audit.events", Value: validAuditValue()}

	out, err := applyTransformations(rec, nil)
	require.NoError(t, err)
	assert.Same(t, rec, out)
}

func TestApplyTransformationsNilRecord(t *testing.T) {
	_, err := applyTransformations(nil, []transform.Transformation{
		{Type: "auditschema"},
	})
	assert.Error(t, err)
}

func TestApplyTransformationsAuditSchema(t *testing.T) {
	rec := &record.Record{Topic: "audit.events", Value: validAuditValue()}

	out, err := applyTransformations(rec, []transform.Transformation{
		{Type: "auditschema"},
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	audit, ok := out.Value.(*record.AuditRecord)
	require.True(t, ok)
	assert.Equal(t, "a1b2c3", audit.MessageID)
	assert.Equal(t, int64(1724580000000), audit.Timestamp)
}

func TestApplyTransformationsDrop(t *testing.T) {
	value := validAuditValue()
	delete(value, "requester")
	rec := &record.Record{Topic: "audit.events", Value: value}

	out, err := applyTransformations(rec, []transform.Transformation{
		{Type: "auditschema"},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestApplyTransformationsUnknownType(t *testing.T) {
	rec := &record.Record{Topic: "audit.events", Value: validAuditValue()}

	_, err := applyTransformations(rec, []transform.Transformation{
		{Type: "nosuchtransform"},
	})
	assert.Error(t, err)
}

func TestManagerAddPeer(t *testing.T) {
	RegisterConnector("testconn", nil)

	m := NewManager()
	peer, err := m.AddPeer("testconn", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", peer.Name)

	got, err := m.GetPeer("p1")
	require.NoError(t, err)
	assert.Equal(t, "testconn", got.ConnectorName)

	_, err = m.AddPeer("unregistered", "p2")
	assert.Error(t, err)

	_, err = m.GetPeer("missing")
	assert.Error(t, err)
}

func TestManagerSubscriptions(t *testing.T) {
	m := NewManager()

	assert.True(t, m.IsFirstSubscription("src"))

	channels := map[string]chan record.Record{
		"sink": make(chan record.Record, 1),
	}
	m.AddSubscription("src", "pl", channels)

	assert.False(t, m.IsFirstSubscription("src"))
	subs := m.GetSubscriptions("src")
	require.Len(t, subs, 1)
	assert.Equal(t, "pl", subs[0].PipelineName)
}

func TestConfigGetters(t *testing.T) {
	cfg := Config{
		Peers: []Peer{
			{Name: "broker", ConnectorName: ConnectorKafka},
		},
		Pipelines: []Pipeline{
			{Name: "archive"},
		},
	}

	require.NotNil(t, cfg.GetPeer("broker"))
	assert.Nil(t, cfg.GetPeer("nope"))
	require.NotNil(t, cfg.GetPipeline("archive"))
	assert.Nil(t, cfg.GetPipeline("nope"))
}
