package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	MCP      MCPConfig
	Database DatabaseConfig
	Valkey   ValkeyConfig
	Gateway  GatewayConfig
	AI       AIConfig
	Worker   WorkerPoolConfig
	Memory   MemoryConfig
	Handoff  HandoffConfig
	Webhook  WebhookConfig
	Security SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	BaseUrl            string
	CorsAllowedOrigins []string
	BasicAuth          []string
	TrustedProxies     []string
	ServerID           string
	UploadDir          string
	MaxUploadBytes     int64
	RulesFile          string
}

type MCPConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string // File path for SQLite, DB Name for Postgres
	MaxOpenConns int
	LogQueries   bool
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// GatewayConfig describes the WhatsApp gateway HTTP API. InstanceID, Token and
// ClientToken are the process-wide fallback credentials used only when no
// channel row can be resolved.
type GatewayConfig struct {
	BaseURL       string
	InstanceID    string
	Token         string
	ClientToken   string
	Timeout       time.Duration
	RatePerSecond float64
	StatusTTL     time.Duration
}

type AIConfig struct {
	Provider        string
	OpenAIKey       string
	OpenAIModel     string
	GeminiKey       string
	GeminiModel     string
	ClassifyTimeout time.Duration
	HistoryLimit    int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type MemoryConfig struct {
	SweepCron      string
	LastMessageTTL time.Duration
	ContextLimit   int
	ContextMaxLen  int
}

type HandoffConfig struct {
	AssignAgent bool
}

type WebhookConfig struct {
	DedupTTL time.Duration
}

type SecurityConfig struct {
	EncryptionKey string
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	debug := getEnvBool("APP_DEBUG", false) || getEnvBool("DEBUG", false)

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	var basicAuth, trustedProxies []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		trustedProxies = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            getEnv("APP_BASE_URL", "http://localhost:3000"),
		CorsAllowedOrigins: corsOrigins,
		BasicAuth:          basicAuth,
		TrustedProxies:     trustedProxies,
		ServerID:           getEnv("SERVER_ID", ""),
		UploadDir:          getEnv("APP_UPLOAD_DIR", "storages/uploads"),
		MaxUploadBytes:     getEnvInt64("APP_MAX_UPLOAD_BYTES", 16*1024*1024),
		RulesFile:          getEnv("RULES_FILE", ""),
	}

	dbCfg := DatabaseConfig{
		Driver:       getEnv("DB_DRIVER", "sqlite"),
		DSN:          getEnv("DB_DSN", ""),
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnvInt("DB_PORT", 5432),
		User:         getEnv("DB_USER", "postgres"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "storages/educhat.db"),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 50),
		LogQueries:   getEnvBool("DB_LOG_QUERIES", false),
	}

	valkeyCfg := ValkeyConfig{
		Enabled:   getEnvBool("VALKEY_ENABLED", false),
		Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		Password:  getEnv("VALKEY_PASSWORD", ""),
		DB:        getEnvInt("VALKEY_DB", 0),
		KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "educhat:"),
	}

	gatewayCfg := GatewayConfig{
		BaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.z-api.io"),
		InstanceID:    getEnv("GATEWAY_INSTANCE_ID", ""),
		Token:         getEnv("GATEWAY_TOKEN", ""),
		ClientToken:   getEnv("GATEWAY_CLIENT_TOKEN", ""),
		Timeout:       getEnvDuration("GATEWAY_TIMEOUT", 8*time.Second),
		RatePerSecond: getEnvFloat("GATEWAY_RATE_PER_SECOND", 5),
		StatusTTL:     getEnvDuration("GATEWAY_STATUS_TTL", 30*time.Second),
	}

	aiCfg := AIConfig{
		Provider:        strings.ToLower(getEnv("AI_PROVIDER", "openai")),
		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifyTimeout: getEnvDuration("AI_CLASSIFY_TIMEOUT", 15*time.Second),
		HistoryLimit:    getEnvInt("AI_HISTORY_LIMIT", 10),
	}

	cfg := &Config{
		App:      appCfg,
		MCP:      MCPConfig{Port: getEnv("MCP_PORT", "8080"), Host: getEnv("MCP_HOST", "localhost")},
		Database: dbCfg,
		Valkey:   valkeyCfg,
		Gateway:  gatewayCfg,
		AI:       aiCfg,
		Worker:   WorkerPoolConfig{Size: getEnvInt("WORKER_POOL_SIZE", 8), QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 256)},
		Memory: MemoryConfig{
			SweepCron:      getEnv("MEMORY_SWEEP_CRON", "@every 10m"),
			LastMessageTTL: getEnvDuration("MEMORY_LAST_MESSAGE_TTL", 24*time.Hour),
			ContextLimit:   getEnvInt("MEMORY_CONTEXT_LIMIT", 20),
			ContextMaxLen:  getEnvInt("MEMORY_CONTEXT_MAX_LEN", 1500),
		},
		Handoff:  HandoffConfig{AssignAgent: getEnvBool("HANDOFF_ASSIGN_AGENT", true)},
		Webhook:  WebhookConfig{DedupTTL: getEnvDuration("WEBHOOK_DEDUP_TTL", 10*time.Minute)},
		Security: SecurityConfig{EncryptionKey: getEnv("SECURITY_ENCRYPTION_KEY", "")},
	}

	Global = cfg
	return cfg, nil
}

// HasFallbackCredentials reports whether all three env gateway credentials are set.
func (g GatewayConfig) HasFallbackCredentials() bool {
	return g.InstanceID != "" && g.Token != "" && g.ClientToken != ""
}
