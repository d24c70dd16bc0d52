package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	c := &Config{}
	c.applyDefaults()

	require.Equal(t, "8080", c.Server.Port)
	require.Equal(t, 5, c.Server.ReadTimeoutSec)
	require.Equal(t, "CARD_AUTH", c.Ruleset.DefaultKey)
	require.Equal(t, "field-registry/registry.json", c.ObjectStore.FieldRegistryKey)
	require.Equal(t, 0.5, c.Velocity.BreakerFailureRate)
	require.Equal(t, int64(200_000), c.Outbox.MaxLen)
	require.NotEmpty(t, c.Outbox.ConsumerName)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	c := &Config{Ruleset: RulesetConfig{DefaultKey: "CARD_REFUND"}}
	c.applyDefaults()
	require.Equal(t, "CARD_REFUND", c.Ruleset.DefaultKey)
}

func TestApplyEnvOverridesPrefersEnvThenDefault(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "broker-1:9092, broker-2:9092")
	t.Setenv("LOAD_SHED_ENABLED", "true")

	c := &Config{}
	c.applyEnvOverrides()

	require.Equal(t, "9090", c.Server.Port)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Kafka.BootstrapServers)
	require.True(t, c.LoadShed.Enabled)
}

func TestSplitCSVTrimsAndDropsEmpty(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitCSV("a, b ,,c"))
}

func TestIsProduction(t *testing.T) {
	c := &Config{Server: ServerConfig{Env: "production"}}
	require.True(t, c.IsProduction())
	c.Server.Env = "staging"
	require.False(t, c.IsProduction())
}
