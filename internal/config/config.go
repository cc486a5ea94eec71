package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Redennison/CampusCollab/relay-service/internal/ratelimit"
	"github.com/Redennison/CampusCollab/relay-service/internal/registry"
	"github.com/Redennison/CampusCollab/relay-service/internal/store"
	"github.com/Redennison/CampusCollab/relay-service/internal/stream"
	pkgconfig "github.com/Redennison/CampusCollab/relay-service/pkg/config"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	WebSocket WebSocketConfig  `mapstructure:"websocket"`
	Auth      AuthConfig       `mapstructure:"auth"`
	RateLimit ratelimit.Policy `mapstructure:"rate_limit"`
	Store     store.Config     `mapstructure:"store"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Registry  registry.Config  `mapstructure:"registry"`
	Kafka     stream.Config    `mapstructure:"kafka"`
	Log       log.Config       `mapstructure:"log"`
}

type ServerConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	AdvertiseAddress string `mapstructure:"advertise_address"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.advertise_address", "localhost:8085")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("rate_limit.max_messages", 5)
	v.SetDefault("rate_limit.window", "10s")
	v.SetDefault("rate_limit.cooldown", "30s")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sql.host", "localhost")
	v.SetDefault("store.sql.port", 5432)
	v.SetDefault("store.sql.user", "relay")
	v.SetDefault("store.sql.dbname", "campuscollab")
	v.SetDefault("store.sql.sslmode", "disable")
	v.SetDefault("store.cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("store.cassandra.keyspace", "campuscollab_chat")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "relay:history")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("registry.prefix", "relay:registry")
	v.SetDefault("registry.key_ttl", "30s")
	v.SetDefault("registry.heartbeat_interval", "10s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-messages")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "relay-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.advertise_address", "ADVERTISE_ADDRESS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.sql.host", "SQL_HOST")
	v.BindEnv("store.sql.password", "SQL_PASSWORD")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.RateLimit.Window = parseDuration(v, "rate_limit.window", 10*time.Second)
	cfg.RateLimit.Cooldown = parseDuration(v, "rate_limit.cooldown", 30*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)
	cfg.Registry.KeyTTL = parseDuration(v, "registry.key_ttl", 30*time.Second)
	cfg.Registry.HeartbeatInterval = parseDuration(v, "registry.heartbeat_interval", 10*time.Second)
	cfg.Store.Cassandra.ConnectTimeout = parseDuration(v, "store.cassandra.connect_timeout", 10*time.Second)
	cfg.Store.Cassandra.Timeout = parseDuration(v, "store.cassandra.timeout", 5*time.Second)

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra:9042" or "host1:9042,host2:9042"
	if hosts := os.Getenv("CASSANDRA_HOSTS"); hosts != "" {
		cfg.Store.Cassandra.Hosts = splitHosts(hosts)
	}

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitHosts(s string) []string {
	parts := strings.Split(strings.TrimSpace(s), ",")
	for i, h := range parts {
		parts[i] = strings.TrimSpace(h)
	}
	return parts
}
