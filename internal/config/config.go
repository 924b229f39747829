package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/amplifrens/amplifrens-indexer/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug       bool   `mapstructure:"debug"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // e.g. "5m", "1h"
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // e.g. "10m"
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL             string        `mapstructure:"url"`
	StreamName      string        `mapstructure:"stream_name"`
	ConsumerName    string        `mapstructure:"consumer_name"`
	MaxReconnects   int           `mapstructure:"max_reconnects"`
	ReconnectWait   time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName  string        `mapstructure:"connection_name"`
	AckWait         time.Duration `mapstructure:"ack_wait"`
	MaxDeliver      int           `mapstructure:"max_deliver"`
	// EnsureStream lets publishers create or update the event stream on connect
	EnsureStream    bool          `mapstructure:"ensure_stream"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

// EthereumConfig holds the chain endpoint and the AmpliFrens deployment
type EthereumConfig struct {
	WebSocketURL string       `mapstructure:"websocket_url"`
	RPCURL       string       `mapstructure:"rpc_url"`
	ChainID      domain.Chain `mapstructure:"chain_id"`
	StartBlock   uint64       `mapstructure:"start_block"`
	// ContractAddresses are the contracts whose logs are indexed
	ContractAddresses []string `mapstructure:"contract_addresses"`
	SBTContract       string   `mapstructure:"sbt_contract"`
	ProfileContract   string   `mapstructure:"profile_contract"`
	LogBufferSize     int      `mapstructure:"log_buffer_size"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RateLimitConfig holds the shared budget of view calls
type RateLimitConfig struct {
	RequestsPerSecond       int     `mapstructure:"requests_per_second"`
	Burst                   int     `mapstructure:"burst"`
	KeyPrefix               string  `mapstructure:"key_prefix"`
	EnableLocalFallback     bool    `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64 `mapstructure:"local_fallback_multiplier"`
}

// ViewRetryConfig bounds the retries of a view call
type ViewRetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
}

// NotifyConfig holds the change notification stream configuration
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// TemporalConfig holds Temporal configuration
type TemporalConfig struct {
	HostPort                           string  `mapstructure:"host_port"`
	Namespace                          string  `mapstructure:"namespace"`
	ReplayTaskQueue                    string  `mapstructure:"replay_task_queue"`
	MaxConcurrentActivityExecutionSize int     `mapstructure:"max_concurrent_activity_execution_size"`
	WorkerActivitiesPerSecond          float64 `mapstructure:"worker_activities_per_second"`
	MaxConcurrentActivityTaskPollers   int     `mapstructure:"max_concurrent_activity_task_pollers"`
}

// ReplayConfig holds the replay workflow tuning
type ReplayConfig struct {
	DefaultChunkSize uint64        `mapstructure:"default_chunk_size"`
	MaxChunkSize     uint64        `mapstructure:"max_chunk_size"`
	ActivityTimeout  time.Duration `mapstructure:"activity_timeout"`
	MaxAttempts      int32         `mapstructure:"max_attempts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout bounds the drain of in-flight requests on SIGTERM
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	JWTAudience  string   `mapstructure:"jwt_audience"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// CursorConfig controls how often the emitter persists its block cursor
type CursorConfig struct {
	SaveFreq  uint64        `mapstructure:"save_freq"`
	SaveDelay time.Duration `mapstructure:"save_delay"`
}

// EventEmitterConfig holds configuration for event-emitter
type EventEmitterConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Ethereum   EthereumConfig `mapstructure:"ethereum"`
	Cursor     CursorConfig   `mapstructure:"cursor"`
}

// IndexerConfig holds configuration for indexer
type IndexerConfig struct {
	BaseConfig       `mapstructure:",squash"`
	Database         DatabaseConfig  `mapstructure:"database"`
	NATS             NATSConfig      `mapstructure:"nats"`
	Ethereum         EthereumConfig  `mapstructure:"ethereum"`
	Redis            RedisConfig     `mapstructure:"redis"`
	RateLimit        RateLimitConfig `mapstructure:"rate_limit"`
	ViewRetry        ViewRetryConfig `mapstructure:"view_retry"`
	Notify           NotifyConfig    `mapstructure:"notify"`
	RetryDelay       time.Duration   `mapstructure:"retry_delay"`
	SnapshotSchedule string          `mapstructure:"snapshot_schedule"`
	MetricsAddr      string          `mapstructure:"metrics_addr"`
	ChainHead        ChainHeadConfig `mapstructure:"chain_head"`
}

// ChainHeadConfig holds the caching of the chain head used for lag metrics
type ChainHeadConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	StaleWindow time.Duration `mapstructure:"stale_window"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Temporal   TemporalConfig `mapstructure:"temporal"`
	Auth       AuthConfig     `mapstructure:"auth"`
}

// WorkerReplayConfig holds configuration for worker-replay
type WorkerReplayConfig struct {
	BaseConfig `mapstructure:",squash"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Ethereum   EthereumConfig `mapstructure:"ethereum"`
	Temporal   TemporalConfig `mapstructure:"temporal"`
	Replay     ReplayConfig   `mapstructure:"replay"`
}

// SimulatorConfig holds configuration for simulator
type SimulatorConfig struct {
	BaseConfig      `mapstructure:",squash"`
	ChainID         domain.Chain  `mapstructure:"chain_id"`
	ContractAddress string        `mapstructure:"contract_address"`
	Admin           string        `mapstructure:"admin"`
	UpkeepInterval  time.Duration `mapstructure:"upkeep_interval"`
	// UpkeepSchedule is the cron expression that drives upkeep checks
	UpkeepSchedule string `mapstructure:"upkeep_schedule"`
	// StartTime is the RFC 3339 instant the simulated clock starts at
	StartTime     string `mapstructure:"start_time"`
	ReportWorkers int    `mapstructure:"report_workers"`
}

// Start parses StartTime
func (c *SimulatorConfig) Start() (time.Time, error) {
	start, err := time.Parse(time.RFC3339, c.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_time %q: %w", c.StartTime, err)
	}
	return start.UTC(), nil
}

// LoadEventEmitterConfig loads configuration for event-emitter
func LoadEventEmitterConfig(configFile string, envPath string) (*EventEmitterConfig, error) {
	v := configureViper("event-emitter", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	v.SetDefault("nats.connection_name", "event-emitter")
	v.SetDefault("ethereum.chain_id", string(domain.ChainPolygonMainnet))
	v.SetDefault("ethereum.log_buffer_size", 256)
	v.SetDefault("cursor.save_freq", 2)
	v.SetDefault("cursor.save_delay", "30s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg EventEmitterConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ethereum.WebSocketURL == "" {
		return nil, errors.New("ethereum.websocket_url is required")
	}
	if len(cfg.Ethereum.ContractAddresses) == 0 {
		return nil, errors.New("ethereum.contract_addresses is required")
	}

	return &cfg, nil
}

// LoadIndexerConfig loads configuration for indexer
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	setDatabaseDefaults(v)
	setNATSDefaults(v)
	v.SetDefault("nats.consumer_name", "indexer")
	v.SetDefault("nats.connection_name", "indexer")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", -1)
	v.SetDefault("ethereum.chain_id", string(domain.ChainPolygonMainnet))
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.key_prefix", "amplifrens:limiter:")
	v.SetDefault("rate_limit.enable_local_fallback", true)
	v.SetDefault("rate_limit.local_fallback_multiplier", 0.5)
	v.SetDefault("view_retry.initial_interval", "500ms")
	v.SetDefault("view_retry.max_interval", "10s")
	v.SetDefault("view_retry.max_elapsed_time", "2m")
	v.SetDefault("view_retry.max_retries", 8)
	v.SetDefault("notify.enabled", true)
	v.SetDefault("notify.stream", "amplifrens:changes")
	v.SetDefault("notify.max_len", 100000)
	v.SetDefault("retry_delay", "5s")
	v.SetDefault("snapshot_schedule", "@every 1m")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("chain_head.ttl", "15s")
	v.SetDefault("chain_head.stale_window", "2m")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg IndexerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "5s")
	setDatabaseDefaults(v)
	setTemporalDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg APIConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWorkerReplayConfig loads configuration for worker-replay
func LoadWorkerReplayConfig(configFile string, envPath string) (*WorkerReplayConfig, error) {
	v := configureViper("worker-replay", configFile, envPath)

	// Set defaults
	setNATSDefaults(v)
	v.SetDefault("nats.connection_name", "worker-replay")
	v.SetDefault("ethereum.chain_id", string(domain.ChainPolygonMainnet))
	setTemporalDefaults(v)
	v.SetDefault("replay.default_chunk_size", 2000)
	v.SetDefault("replay.max_chunk_size", 10000)
	v.SetDefault("replay.activity_timeout", "5m")
	v.SetDefault("replay.max_attempts", 5)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg WorkerReplayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Ethereum.RPCURL == "" {
		return nil, errors.New("ethereum.rpc_url is required")
	}

	return &cfg, nil
}

// LoadSimulatorConfig loads configuration for simulator
func LoadSimulatorConfig(configFile string, envPath string) (*SimulatorConfig, error) {
	v := configureViper("simulator", configFile, envPath)

	// Set defaults
	v.SetDefault("chain_id", string(domain.ChainHardhat))
	v.SetDefault("contract_address", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	v.SetDefault("admin", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	v.SetDefault("upkeep_interval", "24h")
	v.SetDefault("upkeep_schedule", "@every 1h")
	v.SetDefault("start_time", "2022-10-01T00:00:00Z")
	v.SetDefault("report_workers", 4)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg SimulatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.UpkeepInterval <= 0 {
		return nil, errors.New("upkeep_interval must be positive")
	}
	if _, err := cfg.Start(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "AMPLIFRENS_EVENTS")
	v.SetDefault("nats.ensure_stream", true)
	v.SetDefault("nats.duplicate_window", "2m")
}

func setTemporalDefaults(v *viper.Viper) {
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.replay_task_queue", "amplifrens-replay")
	v.SetDefault("temporal.max_concurrent_activity_execution_size", 10)
	v.SetDefault("temporal.worker_activities_per_second", 10)
	v.SetDefault("temporal.max_concurrent_activity_task_pollers", 2)
}

// readConfig reads the config file; a missing file falls back to environment variables
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/indexer/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("AMPLIFRENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		"environment",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.ensure_stream",
		"nats.duplicate_window",
		// Ethereum
		"ethereum.websocket_url",
		"ethereum.rpc_url",
		"ethereum.chain_id",
		"ethereum.start_block",
		"ethereum.contract_addresses",
		"ethereum.sbt_contract",
		"ethereum.profile_contract",
		"ethereum.log_buffer_size",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.pool_size",
		"redis.db",
		// Rate limit
		"rate_limit.requests_per_second",
		"rate_limit.burst",
		"rate_limit.key_prefix",
		"rate_limit.enable_local_fallback",
		"rate_limit.local_fallback_multiplier",
		// View retry
		"view_retry.initial_interval",
		"view_retry.max_interval",
		"view_retry.max_elapsed_time",
		"view_retry.max_retries",
		// Notify
		"notify.enabled",
		"notify.stream",
		"notify.max_len",
		// Temporal
		"temporal.host_port",
		"temporal.namespace",
		"temporal.replay_task_queue",
		"temporal.max_concurrent_activity_execution_size",
		"temporal.worker_activities_per_second",
		"temporal.max_concurrent_activity_task_pollers",
		// Replay
		"replay.default_chunk_size",
		"replay.max_chunk_size",
		"replay.activity_timeout",
		"replay.max_attempts",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.shutdown_timeout",
		"server.allowed_origins",
		// Auth
		"auth.jwt_public_key",
		"auth.jwt_audience",
		"auth.api_keys",
		// Emitter cursor
		"cursor.save_freq",
		"cursor.save_delay",
		// Indexer
		"retry_delay",
		"snapshot_schedule",
		"metrics_addr",
		"chain_head.ttl",
		"chain_head.stale_window",
		// Simulator
		"chain_id",
		"contract_address",
		"admin",
		"upkeep_interval",
		"upkeep_schedule",
		"start_time",
		"report_workers",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
