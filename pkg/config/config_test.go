package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
engine:
  factors:
    - id: port-congestion
      weight: 2
    - id: route-deviation
      weight: 1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", c.Server.Host)
	assert.Equal(t, 0.7, c.Engine.CorrelationThreshold)
	assert.Equal(t, 6*time.Hour, c.Engine.CorrelationWindow)
	assert.Equal(t, 6*time.Hour, c.Engine.CooccurrenceWindow)
	assert.Equal(t, 0.01, c.Engine.DecayFloor)
	assert.Equal(t, 0.15, c.Engine.DisagreementThreshold)
	assert.Equal(t, 0.05, c.Engine.StalenessECE)
	assert.Equal(t, 0.4, c.Engine.Similarity.FactorMatch)
	assert.Len(t, c.Engine.Factors, 2)
}

func TestLoadRejectsNoFactors(t *testing.T) {
	_, err := Load(writeConfig(t, "environment: test\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factors")
}

func TestLoadRejectsDuplicateFactor(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
engine:
  factors:
    - id: a
      weight: 1
    - id: a
      weight: 1
`))
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SIGNALS_TOPIC", "risk.signals.test")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "risk.signals.test", c.Kafka.SignalsTopic)
}
