package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server      ServerConfig
	TLS         TLSConfig
	Storage     StorageConfig
	Database    DatabaseConfig
	Encryption  EncryptionConfig
	APIAuth     APIAuthConfig
	Scheduler   SchedulerConfig
	OpenFinance OpenFinanceConfig
	Firebase    FirebaseConfig
	AMQP        AMQPConfig
	Sheets      SheetsConfig
	Messages    MessagesConfig
	Catalog     CatalogConfig
	Telemetry   TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	HSTSMaxAge   time.Duration
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend    string
	SQLitePath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type EncryptionConfig struct {
	Key string
}

type APIAuthConfig struct {
	TokenHash string // bcrypt hash of the bearer token
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type OpenFinanceConfig struct {
	BaseURL            string
	ClientID           string
	Secret             string
	Timeout            time.Duration
	RefreshConcurrency int
}

type FirebaseConfig struct {
	CredentialsFile string
	DeviceTokens    []string
}

type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Enabled reports whether a broker URL was configured.
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
}

// Enabled reports whether auto-fill export has a destination.
func (c SheetsConfig) Enabled() bool {
	return c.SpreadsheetID != ""
}

type MessagesConfig struct {
	File string
}

type CatalogConfig struct {
	File string // optional JSON layered over the embedded product catalog
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	// Parse scheduler configuration
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true)
	schedulerTimes := splitList(getEnv("SCHEDULER_TIMES", "06:00,18:00"))
	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}
	schedulerRunOnStartup := getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false)

	// Parse aggregation service configuration
	ofTimeout, err := time.ParseDuration(getEnv("OPENFINANCE_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPENFINANCE_TIMEOUT: %w", err)
	}
	ofConcurrency, err := strconv.Atoi(getEnv("OPENFINANCE_REFRESH_CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPENFINANCE_REFRESH_CONCURRENCY: %w", err)
	}

	hstsMaxAge, err := time.ParseDuration(getEnv("HSTS_MAX_AGE", "4320h"))
	if err != nil {
		return nil, fmt.Errorf("invalid HSTS_MAX_AGE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: splitList(getEnv("ALLOWED_HOSTS", "")),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
			HSTSMaxAge:   hstsMaxAge,
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
			SQLitePath: getEnv("SQLITE_PATH", "finlink.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "finlink"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "finlink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		APIAuth: APIAuthConfig{
			TokenHash: getEnv("API_TOKEN_HASH", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       schedulerEnabled,
			ScheduleTimes: schedulerTimes,
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  schedulerRunOnStartup,
		},
		OpenFinance: OpenFinanceConfig{
			BaseURL:            strings.TrimRight(getEnv("OPENFINANCE_BASE_URL", "https://sandbox.plaid.com"), "/"),
			ClientID:           getEnv("OPENFINANCE_CLIENT_ID", ""),
			Secret:             getEnv("OPENFINANCE_SECRET", ""),
			Timeout:            ofTimeout,
			RefreshConcurrency: ofConcurrency,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			DeviceTokens:    splitList(getEnv("FIREBASE_DEVICE_TOKENS", "")),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "finlink"),
			Queue:    getEnv("AMQP_QUEUE", "finlink.refresh"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
			SheetName:       getEnv("SHEETS_SHEET_NAME", "Weekly"),
			CredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		},
		Catalog: CatalogConfig{
			File: getEnv("CATALOG_FILE", ""),
		},
		Messages: MessagesConfig{
			File: getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finlink-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	switch cfg.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (want memory, sqlite or postgres)", cfg.Storage.Backend)
	}

	if cfg.OpenFinance.RefreshConcurrency < 1 {
		return nil, fmt.Errorf("OPENFINANCE_REFRESH_CONCURRENCY must be at least 1")
	}

	// Validate TLS configuration
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in the URL form golang-migrate expects.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
