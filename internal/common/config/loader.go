// internal/common/config/loader.go
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
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and finally lets well-known secret variables
// fill anything still empty.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads a single YAML file. Used by the CLI and tests.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// envOverride assigns the first non-empty environment variable to dst when dst is empty.
func envOverride(dst *string, names ...string) {
	if *dst != "" {
		return
	}
	for _, n := range names {
		if val := os.Getenv(n); val != "" {
			*dst = val
			return
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	envOverride(&cfg.LLM.OpenAI.APIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LLM.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")

	envOverride(&cfg.APIs.WebSearch.APIKey, "GOOGLE_CSE_API_KEY", "GOOGLE_CSE_KEY")
	envOverride(&cfg.APIs.WebSearch.EngineID, "GOOGLE_CSE_ENGINE_ID", "GOOGLE_CSE_ID")
	envOverride(&cfg.APIs.Scorecard.APIKey, "COLLEGE_SCORECARD_API_KEY")

	envOverride(&cfg.Auth.JWTSecret, "SUPABASE_JWT_SECRET", "JWT_SECRET")

	envOverride(&cfg.Database.Postgres.URL, "DATABASE_URL")
	envOverride(&cfg.Database.Postgres.User, "DB_USER")
	envOverride(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	envOverride(&cfg.Database.Redis.Address, "REDIS_ADDR")

	envOverride(&cfg.Ingest.SNSTopicARN, "INGEST_SNS_TOPIC_ARN")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "career-coach"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 90000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "listings"
	}

	if cfg.Auth.AdminRole == "" {
		cfg.Auth.AdminRole = "service_role"
	}
	if cfg.Auth.UserIDClaim == "" {
		cfg.Auth.UserIDClaim = "sub"
	}
	if cfg.Auth.RoleClaim == "" {
		cfg.Auth.RoleClaim = "role"
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "openai"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Gemini.Model == "" {
		cfg.LLM.Gemini.Model = "gemini-1.5-flash"
	}

	if cfg.APIs.WebSearch.Timeout == 0 {
		cfg.APIs.WebSearch.Timeout = 10000
	}
	if cfg.APIs.WebSearch.MaxResults == 0 {
		cfg.APIs.WebSearch.MaxResults = 5
	}
	if cfg.APIs.PageFetch.Timeout == 0 {
		cfg.APIs.PageFetch.Timeout = 8000
	}
	if cfg.APIs.PageFetch.MaxChars == 0 {
		cfg.APIs.PageFetch.MaxChars = 3000
	}
	if cfg.APIs.PageFetch.MaxPages == 0 {
		cfg.APIs.PageFetch.MaxPages = 3
	}
	if cfg.APIs.PageFetch.UserAgent == "" {
		cfg.APIs.PageFetch.UserAgent = "Mozilla/5.0 (compatible; CareerCoachBot/1.0)"
	}
	if cfg.APIs.Scorecard.BaseURL == "" {
		cfg.APIs.Scorecard.BaseURL = "https://api.data.gov/ed/collegescorecard/v1"
	}
	if cfg.APIs.Scorecard.Timeout == 0 {
		cfg.APIs.Scorecard.Timeout = 15000
	}

	if cfg.Chat.InternalCacheTTL == 0 {
		cfg.Chat.InternalCacheTTL = 300000
	}
	if cfg.Chat.ClassifyCacheTTL == 0 {
		cfg.Chat.ClassifyCacheTTL = 3600000
	}
	if cfg.Chat.AnswerTemp == 0 {
		cfg.Chat.AnswerTemp = 0.6
	}
	if cfg.Chat.MaxFollowups == 0 {
		cfg.Chat.MaxFollowups = 6
	}
	if cfg.Chat.ListingsPerTable == 0 {
		cfg.Chat.ListingsPerTable = 3
	}

	if cfg.Ingest.Delay == 0 {
		cfg.Ingest.Delay = 1500
	}
	if cfg.Ingest.AWSRegion == "" {
		cfg.Ingest.AWSRegion = "us-east-1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.URL == "" {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.url or database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when redis is enabled")
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when elasticsearch is enabled")
	}

	switch cfg.LLM.DefaultProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.default_provider must be openai or gemini, got %q", cfg.LLM.DefaultProvider)
	}

	if cfg.Chat.MaxFollowups < 1 || cfg.Chat.MaxFollowups > 6 {
		return fmt.Errorf("chat.max_followups must be between 1 and 6")
	}

	return nil
}

// GetDuration converts a millisecond config value.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
