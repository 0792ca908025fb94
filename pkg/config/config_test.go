package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "auditpipe.yaml")

	yaml := `
metrics:
  enabled: false
  addr: :9200
pipeline:
  peers:
  - name: broker
    connector: kafka
    config:
      brokers:
      - localhost:9092
  - name: archive
    connector: postgres
    config:
      connString: postgres://localhost:5432/audit
  pipelines:
  - name: archive-audit-events
    sources:
    - name: broker
      transformations:
      - type: auditschema
    sinks:
    - name: archive
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0o600))

	cfg, err := Load(cfgFile)
	require.NoError(t, err)

	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9200", cfg.Metrics.Addr)

	require.Len(t, cfg.Pipeline.Peers, 2)
	assert.Equal(t, "kafka", cfg.Pipeline.Peers[0].ConnectorName)
	assert.Equal(t, "postgres", cfg.Pipeline.Peers[1].ConnectorName)

	require.Len(t, cfg.Pipeline.Pipelines, 1)
	pl := cfg.Pipeline.Pipelines[0]
	assert.Equal(t, "archive-audit-events", pl.Name)
	require.Len(t, pl.Sources, 1)
	require.Len(t, pl.Sources[0].Transformations, 1)
	assert.Equal(t, "auditschema", pl.Sources[0].Transformations[0].Type)
	require.Len(t, pl.Sinks, 1)
	assert.Equal(t, "archive", pl.Sinks[0].Name)
}

func TestLoadMissingFileDefaults(t *testing.T) {
	// No config file anywhere: defaults apply, no error
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Empty(t, cfg.Pipeline.Peers)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "auditpipe.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(":\t not yaml ["), 0o600))

	_, err := Load(cfgFile)
	assert.Error(t, err)
}
