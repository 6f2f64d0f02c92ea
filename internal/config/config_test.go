package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var keys = []string{
	"HTTP_ADDR", "POSTGRES_DSN", "POSTGRES_MAX_CONNS", "REDIS_ADDR", "KAFKA_BROKERS",
	"SERVICE_NAME", "LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT", "REQUEST_TIMEOUT_SECONDS",
	"SHUTDOWN_TIMEOUT_SECONDS", "PROJECTOR_GROUP", "PROJECTOR_WORKERS",
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":5000", c.HTTPAddr)
	assert.Equal(t, int32(8), c.PostgresMaxConns)
	assert.Equal(t, []string{"kafka:9092"}, c.KafkaBrokers)
	assert.Equal(t, "storefront-api", c.ServiceName)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.OTLPEndpoint)
	assert.Equal(t, 5*time.Second, c.RequestTimeout)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 4, c.ProjectorWorkers)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("POSTGRES_MAX_CONNS", "20")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "2")
	t.Setenv("PROJECTOR_WORKERS", "abc")
	c := Load()
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, int32(20), c.PostgresMaxConns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 2*time.Second, c.RequestTimeout)
	assert.Equal(t, 4, c.ProjectorWorkers, "invalid numbers fall back to the default")
}
