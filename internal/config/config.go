// Package config loads the persister configuration from config.json and
// the environment, and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DB         DBConfig         `mapstructure:",squash"`
	Server     ServerConfig     `mapstructure:"server"`
	Dispatch   DispatchConfig   `mapstructure:",squash"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Log        LogConfig        `mapstructure:"log"`

	// DeadLetterFile is the JSON file collecting envelopes that exhausted
	// their retry budget.
	DeadLetterFile string `mapstructure:"dead_letter_file"`
}

// DBConfig holds the PostgreSQL endpoint. The flat keys match the config
// file contract consumed by the scraper deployments.
type DBConfig struct {
	URL      string `mapstructure:"db_url"`
	Port     int    `mapstructure:"db_port"`
	Name     string `mapstructure:"db_name"`
	User     string `mapstructure:"db_user"`
	Password string `mapstructure:"db_password"`
	MaxConns int32  `mapstructure:"db_max_conns"`
	MinConns int32  `mapstructure:"db_min_conns"`
}

// ConnString renders the pgx connection string.
func (c DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.URL, c.Port, c.Name)
}

// ServerConfig configures the TCP intake server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// MaxConnections caps concurrently tracked connections; surplus
	// accepts are closed immediately.
	MaxConnections int `mapstructure:"max_connections"`

	// MaxUnactiveConnectionSeconds is the idle threshold after which the
	// reaper closes a connection.
	MaxUnactiveConnectionSeconds int `mapstructure:"max_unactive_connection_seconds"`

	// UnactiveConnListenSeconds is the reaper tick.
	UnactiveConnListenSeconds int `mapstructure:"unactive_conn_listen_seconds"`

	// ReadTimeoutSeconds is the per-connection read deadline.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
}

// Addr renders the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DispatchConfig configures per-message retry behavior.
type DispatchConfig struct {
	MaxRetries int     `mapstructure:"max_retries"`
	DelaySecs  float64 `mapstructure:"delay_secs"`
}

// SimilarityConfig exposes the per-entity similarity thresholds. The
// defaults are the high-precision contract values; deployments tune them
// per corpus.
type SimilarityConfig struct {
	PublicationTitle float64 `mapstructure:"publication_title"`
	AuthorName       float64 `mapstructure:"author_name"`
	InterestName     float64 `mapstructure:"interest_name"`
	JournalTitle     float64 `mapstructure:"journal_title"`
	JournalAttach    float64 `mapstructure:"journal_attach"`
	AcronymLookup    float64 `mapstructure:"acronym_lookup"`
	AcronymUpsert    float64 `mapstructure:"acronym_upsert"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from config.json and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PERSISTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_min_conns", 2)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5151)
	v.SetDefault("server.max_connections", 64)
	v.SetDefault("server.max_unactive_connection_seconds", 600)
	v.SetDefault("server.unactive_conn_listen_seconds", 60)
	v.SetDefault("server.read_timeout_seconds", 1200)
	v.SetDefault("max_retries", 3)
	v.SetDefault("delay_secs", 2.0)
	v.SetDefault("dead_letter_file", "persister.errors.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("similarity.publication_title", 0.87)
	v.SetDefault("similarity.author_name", 0.70)
	v.SetDefault("similarity.interest_name", 0.80)
	v.SetDefault("similarity.journal_title", 0.75)
	v.SetDefault("similarity.journal_attach", 0.80)
	v.SetDefault("similarity.acronym_lookup", 0.94)
	v.SetDefault("similarity.acronym_upsert", 0.95)

	// Read config file (optional; env can supply everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// The scraper deployments write the server tuning keys at the top
	// level of config.json.
	applyFlatKeys(v, &cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyFlatKeys maps the legacy flat config keys onto the server section.
func applyFlatKeys(v *viper.Viper, cfg *Config) {
	if v.IsSet("max_connections") {
		if n := v.GetInt("max_connections"); n > 0 {
			cfg.Server.MaxConnections = n
		}
	}
	if v.IsSet("max_unactive_connection_seconds") {
		if n := v.GetInt("max_unactive_connection_seconds"); n > 0 {
			cfg.Server.MaxUnactiveConnectionSeconds = n
		}
	}
	if v.IsSet("unactive_conn_listen_seconds") {
		if n := v.GetInt("unactive_conn_listen_seconds"); n > 0 {
			cfg.Server.UnactiveConnListenSeconds = n
		}
	}
}

func (c *Config) validate() error {
	if c.DB.URL == "" {
		return eris.New("config: db_url is required")
	}
	if c.DB.Name == "" {
		return eris.New("config: db_name is required")
	}
	if c.DB.User == "" {
		return eris.New("config: db_user is required")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
