package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Router     RouterConfig     `mapstructure:"router"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Storage    StorageConfig    `mapstructure:"storage"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type OpenRouterConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RouterConfig holds the model tiers and the escalation heuristics.
type RouterConfig struct {
	FreeModel   string `mapstructure:"free_model"`
	PaidModel   string `mapstructure:"paid_model"`
	ReasonModel string `mapstructure:"reason_model"`

	ComplexityThreshold     int      `mapstructure:"complexity_threshold"`
	DissatisfactionTriggers []string `mapstructure:"dissatisfaction_triggers"`
	TechnicalTriggers       []string `mapstructure:"technical_triggers"`

	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type ClassifierConfig struct {
	NonEducationalKeywords []string       `mapstructure:"non_educational_keywords"`
	EducationalKeywords    []string       `mapstructure:"educational_keywords"`
	ConfidenceThreshold    float64        `mapstructure:"confidence_threshold"`
	ZeroShot               ZeroShotConfig `mapstructure:"zero_shot"`
}

type ZeroShotConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type UploadConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
	OCRModel     string `mapstructure:"ocr_model"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Directory       string   `mapstructure:"directory"`
	Languages       []string `mapstructure:"languages"`
}

type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Token         string `mapstructure:"token"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

// Default keyword and trigger lists. Kept as data rather than inline logic so
// the YAML config can tune them without code changes.
var (
	defaultNonEducationalKeywords = []string{
		"movie", "theft", "robbery", "netflix", "watch", "download", "shopping", "travel",
		"celebrity", "repair my", "fix my", "broken", "not working", "how much to repair",
		"where to fix", "price of", "how much does", "cost of", "which phone", "which mobile",
		"which game", "best ice cream", "recommend a", "which brand", "better option",
		"should i buy", "top rated",
	}

	defaultEducationalKeywords = []string{
		"explain", "how", "science", "language", "history", "scientific", "logic",
		"architecture", "design principles", "engineering", "teach me", "learning",
		"pedagogy", "types of", "list of", "classification of", "define", "difference between",
	}

	defaultDissatisfactionTriggers = []string{
		"not satisfied", "explain better", "more detail", "incomplete answer",
	}

	defaultTechnicalTriggers = []string{
		"explain in detail", "step-by-step", "prove that", "compare and contrast",
	}
)

const defaultSystemPrompt = `You are an expert educational assistant named SparkTutor. Provide clean, well-structured, and direct answers.
- Use bold text for key terms.
- Use bullet points or numbered lists where appropriate for clarity.
- Do not repeat the user's question in your response.`

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.AutomaticEnv()

	// Set environment variable overrides
	v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	v.BindEnv("classifier.zero_shot.api_token", "HF_API_TOKEN")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")
	v.BindEnv("telegram.token", "TELEGRAM_BOT_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional: defaults plus env vars are enough.
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := os.Getenv("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	// Comma-separated origin list from the environment wins over the file
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		var origins []string
		for _, origin := range strings.Split(originsStr, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			config.Server.AllowedOrigins = origins
		}
	}

	applyListDefaults(&config)

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.allowed_origins", []string{
		"https://www.coxistai.com", "http://localhost:5173", "http://localhost:5000",
	})

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.request_timeout", "30s")

	v.SetDefault("router.free_model", "gpt-3.5-turbo")
	v.SetDefault("router.paid_model", "gpt-4o-mini")
	v.SetDefault("router.reason_model", "gpt-4o")
	v.SetDefault("router.complexity_threshold", 15)
	v.SetDefault("router.temperature", 0.5)
	v.SetDefault("router.max_tokens", 2000)
	v.SetDefault("router.system_prompt", defaultSystemPrompt)

	v.SetDefault("classifier.confidence_threshold", 0.85)
	v.SetDefault("classifier.zero_shot.enabled", true)
	v.SetDefault("classifier.zero_shot.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("classifier.zero_shot.model", "typeform/distilbert-base-uncased-mnli")
	v.SetDefault("classifier.zero_shot.request_timeout", "15s")

	v.SetDefault("upload.dir", "temp_uploads")
	v.SetDefault("upload.max_size_bytes", 16*1024*1024)
	v.SetDefault("upload.ocr_model", "gpt-4o-mini")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_size", 10000)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.memory.default_expiration", "24h")
	v.SetDefault("storage.memory.cleanup_interval", "1h")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("monitoring.metrics.enabled", false)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.directory", "configs/i18n")
	v.SetDefault("i18n.languages", []string{"en", "es"})

	v.SetDefault("telegram.update_timeout", 60)
}

// applyListDefaults fills in the keyword and trigger lists when the config
// file does not set them. Viper drops slice defaults once the section exists,
// so this runs after unmarshalling.
func applyListDefaults(cfg *Config) {
	if len(cfg.Classifier.NonEducationalKeywords) == 0 {
		cfg.Classifier.NonEducationalKeywords = defaultNonEducationalKeywords
	}
	if len(cfg.Classifier.EducationalKeywords) == 0 {
		cfg.Classifier.EducationalKeywords = defaultEducationalKeywords
	}
	if len(cfg.Router.DissatisfactionTriggers) == 0 {
		cfg.Router.DissatisfactionTriggers = defaultDissatisfactionTriggers
	}
	if len(cfg.Router.TechnicalTriggers) == 0 {
		cfg.Router.TechnicalTriggers = defaultTechnicalTriggers
	}
}

func validateConfig(cfg *Config) error {
	if cfg.OpenRouter.APIKey == "" {
		return fmt.Errorf("openrouter api key is required (set OPENROUTER_API_KEY)")
	}
	if cfg.Router.ComplexityThreshold <= 0 {
		return fmt.Errorf("router complexity threshold must be positive")
	}
	if cfg.Classifier.ConfidenceThreshold <= 0 || cfg.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier confidence threshold must be in (0, 1]")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required when telegram is enabled")
	}
	return nil
}
