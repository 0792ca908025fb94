package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToSaramaConfig(t *testing.T) {
	cfg := Config{
		Brokers: []string{"localhost:9092"},
		Version: "2.1.1",
	}

	conf, err := cfg.ToSaramaConfig()
	require.NoError(t, err)
	assert.Equal(t, sarama.WaitForAll, conf.Producer.RequiredAcks)
	assert.True(t, conf.Producer.Return.Successes)
	assert.Equal(t, sarama.OffsetOldest, conf.Consumer.Offsets.Initial)
}

func TestToSaramaConfigInvalidVersion(t *testing.T) {
	cfg := Config{Version: "not-a-version"}
	_, err := cfg.ToSaramaConfig()
	assert.Error(t, err)
}

func TestToSaramaConfigSASL(t *testing.T) {
	cfg := Config{
		Version: "2.1.1",
		SASL:    &SASL{Enable: true, Username: "u", Password: "p", Algorithm: "sha512"},
	}

	conf, err := cfg.ToSaramaConfig()
	require.NoError(t, err)
	assert.True(t, conf.Net.SASL.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypeSCRAMSHA512), conf.Net.SASL.Mechanism)

	cfg.SASL.Algorithm = "md5"
	_, err = cfg.ToSaramaConfig()
	assert.Error(t, err)
}
