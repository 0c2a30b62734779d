package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageDriverMinIO = "minio"
	StorageDriverDisk  = "disk"
)

// Session backends accepted by SESSION_STORE.
const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
	SessionStoreBadger   = "badger"
)

// Config aggregates runtime configuration for the file store API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Storage  StorageConfig
	Session  SessionConfig
	Auth     AuthConfig
	Progress ProgressConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	// ReadTimeout bounds whole requests, bodies included. Upload handlers
	// lift it for their own connection.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	AutoMigrate bool
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// StorageConfig selects where uploaded bytes end up.
type StorageConfig struct {
	Driver        string
	DiskRoot      string
	MaxUploadSize int64
	MaxCommentLen int
}

// SessionConfig selects and tunes the session backend.
type SessionConfig struct {
	Store         string
	TTL           time.Duration
	SweepInterval time.Duration
	BadgerPath    string
	CookieName    string
	CookieSecure  bool
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	ActivationSecret string
	ActivationTTL    time.Duration
	PublicBaseURL    string
	LoginPath        string
	BcryptCost       int
}

// ProgressConfig tunes the upload progress channel.
type ProgressConfig struct {
	ReplayBuffer  int
	ReplayTTL     time.Duration
	QueueSize     int
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	SweepInterval time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:              getString("FILESTORE_API_HOST", "0.0.0.0"),
			Port:              getInt("FILESTORE_API_PORT", 8080),
			ReadHeaderTimeout: getDuration("FILESTORE_API_READ_HEADER_TIMEOUT", 15*time.Second),
			ReadTimeout:       getDuration("FILESTORE_API_READ_TIMEOUT", 0),
			WriteTimeout:      getDuration("FILESTORE_API_WRITE_TIMEOUT", 0),
			IdleTimeout:       getDuration("FILESTORE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:        getString("POSTGRES_HOST", "localhost"),
			Port:        getInt("POSTGRES_PORT", 5432),
			User:        getString("POSTGRES_USER", "filestore_app"),
			Password:    getString("POSTGRES_PASSWORD", "change-me"),
			Database:    getString("POSTGRES_DB", "filestore"),
			SSLMode:     strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			AutoMigrate: getBool("POSTGRES_AUTO_MIGRATE", true),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "filestore"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "filestore"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(getString("STORAGE_DRIVER", StorageDriverMinIO)),
			DiskRoot:      getString("STORAGE_DISK_ROOT", "uploads"),
			MaxUploadSize: getInt64("STORAGE_MAX_UPLOAD_BYTES", 50*1024*1024),
			MaxCommentLen: getInt("STORAGE_MAX_COMMENT_LENGTH", 4096),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(getString("SESSION_STORE", SessionStoreMemory)),
			TTL:           getDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			BadgerPath:    getString("SESSION_BADGER_PATH", "data/sessions"),
			CookieName:    getString("SESSION_COOKIE_NAME", "fs_session"),
			CookieSecure:  getBool("SESSION_COOKIE_SECURE", false),
		},
		Auth: loadAuthConfig(),
		Progress: ProgressConfig{
			ReplayBuffer:  getInt("PROGRESS_REPLAY_BUFFER", 0),
			ReplayTTL:     getDuration("PROGRESS_REPLAY_TTL", 30*time.Second),
			QueueSize:     getInt("PROGRESS_QUEUE_SIZE", 16),
			PingInterval:  getDuration("PROGRESS_PING_INTERVAL", 30*time.Second),
			PongWait:      getDuration("PROGRESS_PONG_WAIT", 60*time.Second),
			WriteWait:     getDuration("PROGRESS_WRITE_WAIT", 10*time.Second),
			SweepInterval: getDuration("PROGRESS_SWEEP_INTERVAL", 15*time.Second),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("FILESTORE_METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getString("LOG_LEVEL", "info")),
			Format: strings.ToLower(getString("LOG_FORMAT", "json")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects enumerations and limits the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageDriverMinIO, StorageDriverDisk:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q: want %s or %s", c.Storage.Driver, StorageDriverMinIO, StorageDriverDisk))
	}

	switch c.Session.Store {
	case SessionStoreMemory, SessionStorePostgres, SessionStoreBadger:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE %q: want %s, %s or %s",
			c.Session.Store, SessionStoreMemory, SessionStorePostgres, SessionStoreBadger))
	}

	if c.Storage.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Progress.ReplayBuffer < 0 {
		errs = append(errs, errors.New("PROGRESS_REPLAY_BUFFER must not be negative"))
	}
	if c.Progress.QueueSize <= 0 {
		errs = append(errs, errors.New("PROGRESS_QUEUE_SIZE must be positive"))
	}
	if c.Progress.PingInterval <= 0 || c.Progress.PongWait <= c.Progress.PingInterval {
		errs = append(errs, errors.New("PROGRESS_PONG_WAIT must exceed a positive PROGRESS_PING_INTERVAL"))
	}

	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("FILESTORE_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		ActivationSecret: getString("FILESTORE_ACTIVATION_SECRET", "change-me-to-a-32-byte-secret"),
		ActivationTTL:    getDuration("FILESTORE_ACTIVATION_TTL", 24*time.Hour),
		PublicBaseURL:    strings.TrimRight(getString("FILESTORE_PUBLIC_URL", "http://localhost:8080"), "/"),
		LoginPath:        getString("FILESTORE_LOGIN_PATH", "/"),
		BcryptCost:       cost,
	}
}
