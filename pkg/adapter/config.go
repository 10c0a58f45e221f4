// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rabbitmq/amqp091-go"

	jms "github.com/GwynCerbin/go_jms"
)

const mimeReadLimit = 512 //bytes that mime will read

type Client struct {
	Username         string        `env:"USERNAME" yaml:"-"`
	Password         string        `env:"PASSWORD" yaml:"-"`
	Host             string        `env:"HOST" yaml:"host"`
	VHost            string        `env:"VHOST" yaml:"vhost"`
	TcpHeartBeat     time.Duration `env:"HEARTBEAT" yaml:"tcp_heartbeat"`
	Properties       amqp091.Table `yaml:"properties"`
	MaxReconnectTime time.Duration `env:"RECONNECT" yaml:"reconnect"`
}

// SessionConfig describes how a session maps destinations onto AMQP.
//   - TopicExchange: exchange topics are published to and bound from.
//   - Transacted: sends are grouped in AMQP transactions, see Session.Commit.
//   - Confirm: every send waits for a publisher confirm. Excludes Transacted.
//   - Prefetch: basic.qos prefetch count of consumer channels, zero means unlimited.
//   - Prefixes: wire prefixes used to qualify destination names.
type SessionConfig struct {
	TopicExchange string       `env:"TOPIC_EXCHANGE" yaml:"topic_exchange" env-default:"amq.topic"`
	Transacted    bool         `env:"TRANSACTED" yaml:"transacted"`
	Confirm       bool         `env:"CONFIRM" yaml:"confirm"`
	Prefetch      int          `env:"PREFETCH" yaml:"prefetch"`
	AppId         string       `env:"APP_ID" yaml:"app_id"`
	Prefixes      jms.Prefixes `yaml:"prefixes" env-prefix:"DEST_"`
}

// Config bundles the connection and session settings read by LoadConfig.
type Config struct {
	Client  Client        `yaml:"client" env-prefix:"RABBIT_"`
	Session SessionConfig `yaml:"session" env-prefix:"JMS_"`
}

type ExchangeDeclare struct {
	Name       string        `env:"NAME" yaml:"name"`
	Type       string        `env:"TYPE" yaml:"type"`
	Durable    bool          `env:"DURABLE" yaml:"durable"`
	AutoDelete bool          `env:"AUTO_DELETE" yaml:"auto_delete"`
	Internal   bool          `env:"INTERNAL" yaml:"internal"`
	Args       amqp091.Table `yaml:"args"`
}
type QueueDeclareAndBind struct {
	Name         string        `env:"NAME" yaml:"name"`
	NoBind       bool          `env:"NO_BIND" yaml:"no_bind"`
	RoutingKey   string        `env:"ROUTING_KEY" yaml:"routing_key"`
	ExchangeName string        `env:"EXCHANGE_NAME" yaml:"exchange_name"`
	BindArgs     amqp091.Table `yaml:"bind_args"`
	Durable      bool          `env:"DURABLE" yaml:"durable"`
	AutoDelete   bool          `env:"AUTO_DELETE" yaml:"auto_delete"`
	Exclusive    bool          `env:"EXCLUSIVE" yaml:"exclusive"`
	Args         amqp091.Table `yaml:"args"`
}

// DefaultSessionConfig returns the settings used when CreateSession gets nil.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TopicExchange: "amq.topic",
		Prefixes:      jms.DefaultPrefixes(),
	}
}

// LoadConfig reads path (YAML) and applies environment overrides on top.
// An empty path reads the environment only. Empty prefixes fall back to the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{Session: DefaultSessionConfig()}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&cfg)
	} else {
		err = cleanenv.ReadConfig(path, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.Session.withDefaults()

	return &cfg, nil
}

// Validate reports settings AMQP cannot combine.
func (c *SessionConfig) Validate() error {
	if c.Transacted && c.Confirm {
		return fmt.Errorf("%w: transacted and confirm modes are exclusive", InvalidConfigError{})
	}
	if c.Prefetch < 0 {
		return fmt.Errorf("%w: negative prefetch %d", InvalidConfigError{}, c.Prefetch)
	}

	return nil
}

func (c *SessionConfig) withDefaults() {
	def := DefaultSessionConfig()
	if c.TopicExchange == "" {
		c.TopicExchange = def.TopicExchange
	}
	if c.Prefixes.Queue == "" {
		c.Prefixes.Queue = def.Prefixes.Queue
	}
	if c.Prefixes.Topic == "" {
		c.Prefixes.Topic = def.Prefixes.Topic
	}
	if c.Prefixes.TempQueue == "" {
		c.Prefixes.TempQueue = def.Prefixes.TempQueue
	}
	if c.Prefixes.TempTopic == "" {
		c.Prefixes.TempTopic = def.Prefixes.TempTopic
	}
}
