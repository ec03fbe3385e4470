package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when a collaborator credential is absent.
// A scrape run must not start without both.
var ErrMissingCredentials = errors.New("missing required credentials")

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Search   SearchConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
	AllowedOrigins       []string
	Development          bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLMinutes int
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type SearchConfig struct {
	BaseURL          string
	APIKey           string
	MaxResults       int
	MaxTokensPerPage int
	TimeoutSec       int
}

type PipelineConfig struct {
	InterSectionDelayMs      int
	InterModelDelayMs        int
	DegradeOnCollectionError bool
	ResultsDir               string
	LogsDir                  string
	RubricPath               string
	ModelsPath               string
	PersistSnapshots         bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (p PipelineConfig) InterSectionDelay() time.Duration {
	return time.Duration(p.InterSectionDelayMs) * time.Millisecond
}

func (p PipelineConfig) InterModelDelay() time.Duration {
	return time.Duration(p.InterModelDelayMs) * time.Millisecond
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLMinutes) * time.Minute
}

// RequireCredentials reports which collaborator keys are missing.
func (c *Config) RequireCredentials() error {
	var missing []string
	if strings.TrimSpace(c.Search.APIKey) == "" {
		missing = append(missing, "PERPLEXITY_API_KEY")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Load reads config.yaml (if present) and the environment.
func Load() (*Config, error) {
	return load(viper.New(), "")
}

// LoadFile reads an explicit config file instead of searching the default paths.
func LoadFile(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/atlas")
	}

	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// ATLAS_* first, then the collaborators' conventional names.
	_ = v.BindEnv("search.apiKey", "ATLAS_SEARCH_APIKEY", "PERPLEXITY_API_KEY")
	_ = v.BindEnv("llm.apiKey", "ATLAS_LLM_APIKEY", "OPENAI_API_KEY")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.maxRequestsPerMinute", 120)
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/atlas.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlMinutes", 1440)

	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.maxTokens", 2048)
	v.SetDefault("llm.timeoutSec", 60)

	v.SetDefault("search.baseURL", "https://api.perplexity.ai")
	v.SetDefault("search.maxResults", 5)
	v.SetDefault("search.maxTokensPerPage", 1024)
	v.SetDefault("search.timeoutSec", 30)

	v.SetDefault("pipeline.interSectionDelayMs", 2000)
	v.SetDefault("pipeline.interModelDelayMs", 3000)
	v.SetDefault("pipeline.degradeOnCollectionError", false)
	v.SetDefault("pipeline.resultsDir", "./scraper/results")
	v.SetDefault("pipeline.logsDir", "./scraper/logs")
	v.SetDefault("pipeline.rubricPath", "")
	v.SetDefault("pipeline.modelsPath", "")
	v.SetDefault("pipeline.persistSnapshots", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stdout")
}
