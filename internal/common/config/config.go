// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	LLM      LLMConfig      `mapstructure:"llm"`
	APIs     APIsConfig     `mapstructure:"apis"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url"` // takes precedence over the discrete fields
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig describes how bearer tokens issued by the hosted auth provider are verified.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	Issuer      string `mapstructure:"issuer"`
	AdminRole   string `mapstructure:"admin_role"`
	UserIDClaim string `mapstructure:"user_id_claim"`
	RoleClaim   string `mapstructure:"role_claim"`
	ClockSkew   int    `mapstructure:"clock_skew"` // milliseconds
}

type LLMConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
	OpenAI          struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"openai"`
	Gemini struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"gemini"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	WebSearch struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		EngineID   string `mapstructure:"engine_id"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxResults int    `mapstructure:"max_results"`
	} `mapstructure:"web_search"`

	PageFetch struct {
		Timeout        int    `mapstructure:"timeout"` // milliseconds
		MaxChars       int    `mapstructure:"max_chars"`
		MaxPages       int    `mapstructure:"max_pages"`
		UserAgent      string `mapstructure:"user_agent"`
		UseReadability bool   `mapstructure:"use_readability"`
	} `mapstructure:"page_fetch"`

	Scorecard struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"scorecard"`
}

// ChatConfig tunes the chat pipeline.
type ChatConfig struct {
	InternalCacheTTL int     `mapstructure:"internal_cache_ttl"` // milliseconds
	ClassifyCacheTTL int     `mapstructure:"classify_cache_ttl"` // milliseconds
	AnswerTemp       float32 `mapstructure:"answer_temperature"`
	MaxFollowups     int     `mapstructure:"max_followups"`
	ListingsPerTable int     `mapstructure:"listings_per_table"`
}

// IngestConfig drives the listing ingestion jobs.
type IngestConfig struct {
	Schedule    string   `mapstructure:"schedule"` // cron spec, empty disables
	Delay       int      `mapstructure:"delay"`    // milliseconds between upstream calls
	Queries     []string `mapstructure:"queries"`
	Location    string   `mapstructure:"location"`
	CIPCodes    []string `mapstructure:"cip_codes"`
	State       string   `mapstructure:"state"`
	SNSTopicARN string   `mapstructure:"sns_topic_arn"`
	AWSRegion   string   `mapstructure:"aws_region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
