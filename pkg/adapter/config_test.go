// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jms "github.com/GwynCerbin/go_jms"
)

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  host: rabbit:5672
  vhost: jobs
  reconnect: 10s
session:
  prefetch: 16
  app_id: billing
  prefixes:
    queue: /amq/queue/
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "rabbit:5672", cfg.Client.Host)
	assert.Equal(t, "jobs", cfg.Client.VHost)
	assert.Equal(t, 10*time.Second, cfg.Client.MaxReconnectTime)
	assert.Equal(t, 16, cfg.Session.Prefetch)
	assert.Equal(t, "billing", cfg.Session.AppId)
	assert.Equal(t, "amq.topic", cfg.Session.TopicExchange)
	assert.Equal(t, "/amq/queue/", cfg.Session.Prefixes.Queue)
	assert.Equal(t, "/topic/", cfg.Session.Prefixes.Topic)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RABBIT_HOST", "localhost:5672")
	t.Setenv("RABBIT_USERNAME", "guest")
	t.Setenv("JMS_PREFETCH", "5")
	t.Setenv("JMS_TRANSACTED", "true")
	t.Setenv("JMS_DEST_TOPIC_PREFIX", "/exchange/")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:5672", cfg.Client.Host)
	assert.Equal(t, "guest", cfg.Client.Username)
	assert.Equal(t, 5, cfg.Session.Prefetch)
	assert.True(t, cfg.Session.Transacted)
	assert.Equal(t, "/exchange/", cfg.Session.Prefixes.Topic)
	assert.Equal(t, "/queue/", cfg.Session.Prefixes.Queue)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSessionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr bool
	}{
		{"default", DefaultSessionConfig(), false},
		{"transacted", SessionConfig{Transacted: true}, false},
		{"confirm", SessionConfig{Confirm: true, Prefetch: 10}, false},
		{"transacted confirm", SessionConfig{Transacted: true, Confirm: true}, true},
		{"negative prefetch", SessionConfig{Prefetch: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, InvalidConfigError{})
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSessionConfig_Defaults(t *testing.T) {
	cfg := SessionConfig{Prefixes: jms.Prefixes{TempQueue: "/tmp/"}}
	cfg.withDefaults()

	assert.Equal(t, "amq.topic", cfg.TopicExchange)
	assert.Equal(t, jms.Prefixes{
		Queue:     "/queue/",
		Topic:     "/topic/",
		TempQueue: "/tmp/",
		TempTopic: "/temp-topic/",
	}, cfg.Prefixes)
}

func TestNextDelay(t *testing.T) {
	delay := firstDelay
	for range 64 {
		next := nextDelay(delay)
		assert.Positive(t, next)
		assert.LessOrEqual(t, next, maxDelayMask)
		assert.GreaterOrEqual(t, next, delay)
		delay = next
	}
	assert.Equal(t, maxDelayMask, delay)
}
