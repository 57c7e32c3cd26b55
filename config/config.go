// Package config loads rxredis settings from an optional file and RXREDIS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/moontrade/rxredis/logger"
	"github.com/moontrade/rxredis/memredis"
	"github.com/moontrade/rxredis/redisstore"
	"github.com/moontrade/rxredis/xstream"
)

type Config struct {
	Redis   RedisConfig  `mapstructure:"redis"`
	Log     LogConfig    `mapstructure:"log"`
	Source  SourceConfig `mapstructure:"source"`
	Sink    SinkConfig   `mapstructure:"sink"`
	Server  ServerConfig `mapstructure:"server"`
	Workers int          `mapstructure:"workers" validate:"gte=2"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required,hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0,lte=15"`
	TLSCert     string        `mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey      string        `mapstructure:"tls_key" validate:"required_with=TLSCert"`
	PoolSize    int           `mapstructure:"pool_size" validate:"gte=0"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug verbose verb trace notice info warning warn error quiet silent"`
	JSON  bool   `mapstructure:"json"`
}

type SourceConfig struct {
	Batch             int           `mapstructure:"batch" validate:"gte=1"`
	Block             time.Duration `mapstructure:"block" validate:"gt=0"`
	CompleteOnTimeout bool          `mapstructure:"complete_on_timeout"`
}

type SinkConfig struct {
	// MaxLen caps output streams; negative disables trimming.
	MaxLen int64 `mapstructure:"max_len"`
}

// ServerConfig configures the embedded store.
type ServerConfig struct {
	Addr                 string `mapstructure:"addr" validate:"required,hostname_port"`
	Auth                 string `mapstructure:"auth"`
	RemoteTime           bool   `mapstructure:"remote_time"`
	NotifyKeyspaceEvents string `mapstructure:"notify_keyspace_events"`
}

var validate = validator.New()

// Load reads path, which may be empty, then applies environment overrides
// such as RXREDIS_REDIS_ADDR and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("rxredis")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// every key needs a default for AutomaticEnv to see it during Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls_cert", "")
	v.SetDefault("redis.tls_key", "")
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("source.batch", xstream.DefaultBatch)
	v.SetDefault("source.block", xstream.DefaultStreamBlock)
	v.SetDefault("source.complete_on_timeout", false)
	v.SetDefault("sink.max_len", xstream.DefaultMaxLen)
	v.SetDefault("server.addr", "127.0.0.1:6379")
	v.SetDefault("server.auth", "")
	v.SetDefault("server.remote_time", false)
	v.SetDefault("server.notify_keyspace_events", "")
	v.SetDefault("workers", 4)
}

var ErrInvalid = errors.New("invalid config")

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ApplyLog points the global logger at out with the configured format and
// level.
func (c Config) ApplyLog(out io.Writer) error {
	if c.Log.JSON {
		logger.SetJSONWriter(out)
	} else {
		logger.SetConsoleWriter(out, false)
	}
	return logger.SetLevel(c.Log.Level)
}

// RedisOptions returns the client options, loading the TLS key pair when
// configured.
func (c Config) RedisOptions() (redisstore.Options, error) {
	opts := redisstore.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		MaxActive:   c.Redis.PoolSize,
		DialTimeout: c.Redis.DialTimeout,
	}
	if c.Redis.TLSCert != "" {
		tlsConfig, err := redisstore.LoadTLS(c.Redis.TLSCert, c.Redis.TLSKey)
		if err != nil {
			return opts, err
		}
		opts.TLS = tlsConfig
	}
	return opts, nil
}

// ServerOptions returns the embedded store options.
func (c Config) ServerOptions() memredis.Options {
	return memredis.Options{
		Addr:                 c.Server.Addr,
		Auth:                 c.Server.Auth,
		NotifyKeyspaceEvents: c.Server.NotifyKeyspaceEvents,
		RemoteTime:           c.Server.RemoteTime,
	}
}

// StreamOptions returns source options for stream starting after startID.
func (c Config) StreamOptions(stream, startID string) xstream.StreamOptions {
	return xstream.StreamOptions{
		Stream:            stream,
		StartID:           startID,
		Batch:             c.Source.Batch,
		Block:             c.Source.Block,
		CompleteOnTimeout: c.Source.CompleteOnTimeout,
	}
}
