package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Push      PushConfig      `mapstructure:"push"`
	Polling   PollingConfig   `mapstructure:"polling"`
	Store     StoreConfig     `mapstructure:"store"`
	Presenter PresenterConfig `mapstructure:"presenter"`
	Desktop   DesktopConfig   `mapstructure:"desktop"`
	Console   ConsoleConfig   `mapstructure:"console"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

// APIConfig points at the REST notification backend.
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type AuthConfig struct {
	// Source selects where the access token comes from: static, file, keyring or keycloak.
	Source string `mapstructure:"source"`
	Token  string `mapstructure:"token"`
	File   string `mapstructure:"file"`
	// Route is the initial route of the session; public auth pages suspend the feed.
	Route    string         `mapstructure:"route"`
	Keyring  KeyringConfig  `mapstructure:"keyring"`
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
}

type KeyringConfig struct {
	Service      string        `mapstructure:"service"`
	Key          string        `mapstructure:"key"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type KeycloakConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// PushConfig lists the push transports. Empty URLs disable a transport.
type PushConfig struct {
	// Order is the cascade order; unknown names are ignored.
	Order            []string       `mapstructure:"order"`
	HandshakeTimeout time.Duration  `mapstructure:"handshake_timeout"`
	Broker           BrokerConfig   `mapstructure:"broker"`
	Stream           StreamConfig   `mapstructure:"stream"`
	Socket           SocketConfig   `mapstructure:"socket"`
	Kafka            KafkaConfig    `mapstructure:"kafka"`
	Redis            RedisConfig    `mapstructure:"redis"`
	Postgres         PostgresConfig `mapstructure:"postgres"`
}

type BrokerConfig struct {
	URL         string        `mapstructure:"url"`
	Destination string        `mapstructure:"destination"`
	Login       string        `mapstructure:"login"`
	HeartBeat   time.Duration `mapstructure:"heartbeat"`
}

type StreamConfig struct {
	URL string `mapstructure:"url"`
}

type SocketConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	// EventTopics are arda domain event topics rendered on this client.
	EventTopics []string `mapstructure:"event_topics"`
	// SASLOAuth authenticates with the access token as an OAUTHBEARER token.
	SASLOAuth bool `mapstructure:"sasl_oauth"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	// Channel may contain {subject}, replaced with the token's subject claim.
	Channel string `mapstructure:"channel"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
	// Channel may contain {subject}, replaced with the token's subject claim.
	// Payloads addressed to another user are dropped either way.
	Channel string `mapstructure:"channel"`
}

type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type StoreConfig struct {
	Capacity      int `mapstructure:"capacity"`
	SnapshotLimit int `mapstructure:"snapshot_limit"`
}

type PresenterConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type DesktopConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Icon    string `mapstructure:"icon"`
	// Permission is the initial permission state: granted, denied or default.
	Permission     string `mapstructure:"permission"`
	GrantOnRequest bool   `mapstructure:"grant_on_request"`
}

type ConsoleConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: ARDA_NOTIFEED_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8095")
	v.SetDefault("server.env", "development")
	v.SetDefault("api.base_url", "http://localhost:8090/api/v1")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("auth.source", "static")
	v.SetDefault("auth.route", "/")
	v.SetDefault("auth.keyring.service", "arda-notifeed")
	v.SetDefault("auth.keyring.key", "access_token")
	v.SetDefault("auth.keyring.poll_interval", 5*time.Second)
	v.SetDefault("auth.keycloak.base_url", "http://localhost:8081")
	v.SetDefault("auth.keycloak.realm", "master")
	v.SetDefault("auth.keycloak.client_id", "arda-notifeed")
	v.SetDefault("push.order", []string{"broker", "stream", "socket", "kafka", "redis", "postgres"})
	v.SetDefault("push.handshake_timeout", 10*time.Second)
	v.SetDefault("push.broker.destination", "/user/queue/notifications")
	v.SetDefault("push.broker.heartbeat", 10*time.Second)
	v.SetDefault("push.kafka.topic", "notification-events")
	v.SetDefault("push.kafka.event_topics", []string{"bpm-events", "crm-events", "iam-events", "notification-commands"})
	v.SetDefault("push.redis.channel", "notifications:{subject}")
	v.SetDefault("push.postgres.channel", "notifications")
	v.SetDefault("polling.interval", 10*time.Second)
	v.SetDefault("store.capacity", 200)
	v.SetDefault("store.snapshot_limit", 20)
	v.SetDefault("presenter.ttl", 6*time.Second)
	v.SetDefault("desktop.enabled", true)
	v.SetDefault("desktop.permission", "default")
	v.SetDefault("desktop.grant_on_request", true)

	// Optional keys still need a default so AutomaticEnv can see them on Unmarshal.
	for _, key := range []string{
		"auth.token", "auth.file", "auth.keycloak.client_secret",
		"push.broker.url", "push.broker.login", "push.stream.url", "push.socket.url",
		"push.redis.url", "push.postgres.dsn", "desktop.icon", "console.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("push.kafka.brokers", []string{})
	v.SetDefault("push.kafka.sasl_oauth", false)

	// Environment variables (e.g. ARDA_NOTIFEED_PUSH_BROKER_URL -> push.broker.url)
	v.SetEnvPrefix("ARDA_NOTIFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support simple env vars without prefix for Docker Compose convenience
	v.BindEnv("api.base_url", "API_BASE_URL")
	v.BindEnv("auth.token", "NOTIFEED_TOKEN")
	v.BindEnv("auth.file", "NOTIFEED_TOKEN_FILE")
	v.BindEnv("auth.keycloak.base_url", "KEYCLOAK_URL")
	v.BindEnv("auth.keycloak.client_secret", "KEYCLOAK_CLIENT_SECRET")
	v.BindEnv("push.broker.url", "BROKER_URL")
	v.BindEnv("push.stream.url", "STREAM_URL")
	v.BindEnv("push.socket.url", "SOCKET_URL")
	v.BindEnv("push.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("push.redis.url", "REDIS_URL")
	v.BindEnv("push.postgres.dsn", "DATABASE_URL")
	v.BindEnv("console.api_key", "CONSOLE_API_KEY")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// KAFKA_BROKERS arrives as a single comma-separated string.
	if len(cfg.Push.Kafka.Brokers) == 1 && strings.Contains(cfg.Push.Kafka.Brokers[0], ",") {
		cfg.Push.Kafka.Brokers = strings.Split(cfg.Push.Kafka.Brokers[0], ",")
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs with production logging.
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}
