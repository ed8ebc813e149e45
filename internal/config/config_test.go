package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("LEARNFLOW_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, EventTransportNATS, cfg.EventTransport)
	require.Equal(t, "learnflow", cfg.EventSubjectPrefix)
	require.Equal(t, 256, cfg.EventBufferSize)
	require.Equal(t, time.Second, cfg.EventPublishTimeout)
	require.Equal(t, time.Minute, cfg.AnalyticsCacheTTL)
	require.Equal(t, 90, cfg.MasteryThreshold)
	require.False(t, cfg.SingleOpenQuizAttempt)
	require.False(t, cfg.EventsEnabled())
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("LEARNFLOW_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("LEARNFLOW_JWT_SECRET", "secret")
	t.Setenv("LEARNFLOW_EVENTS_TRANSPORT", "kafka")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadReadsEventSettings(t *testing.T) {
	t.Setenv("LEARNFLOW_JWT_SECRET", "secret")
	t.Setenv("LEARNFLOW_EVENTS_TRANSPORT", "redis")
	t.Setenv("LEARNFLOW_EVENTS_URL", "redis://localhost:6379/0")
	t.Setenv("LEARNFLOW_EVENTS_PUBLISH_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, EventTransportRedis, cfg.EventTransport)
	require.Equal(t, 250*time.Millisecond, cfg.EventPublishTimeout)
	require.True(t, cfg.EventsEnabled())
}

func TestLoadRequiresSeedTokenWhenEnabled(t *testing.T) {
	t.Setenv("LEARNFLOW_JWT_SECRET", "secret")
	t.Setenv("LEARNFLOW_SEED_ENABLED", "true")
	t.Setenv("LEARNFLOW_SEED_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}
