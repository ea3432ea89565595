package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "BLOG_ENRICHER_CONFIG"

	apiBaseURLEnv     = "API_BASE_URL"
	blogBaseURLEnv    = "BLOG_BASE_URL"
	googleAPIKeyEnv   = "GOOGLE_API_KEY"
	googleCXEnv       = "GOOGLE_CX"
	llmAPIKeyEnv      = "LLM_API_KEY"
	llmProviderEnv    = "LLM_PROVIDER"
	cronScheduleEnv   = "CRON_SCHEDULE"
	databaseDSNEnv    = "DATABASE_DSN"
	mongoURIEnv       = "MONGO_URI"
	storeDriverEnv    = "STORE_DRIVER"
	portEnv           = "PORT"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	kafkaBrokersEnv   = "KAFKA_BROKERS"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
)

// Store drivers.
const (
	DriverHTTP     = "http"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// LLM providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	ErrInvalidBlogURL     = errors.New("blog base url must be an absolute http(s) url")
	ErrInvalidCrawlBounds = errors.New("crawl bounds must be positive")
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrUnknownLLMProvider = errors.New("unknown llm provider")
	ErrMissingDSN         = errors.New("postgres store requires database.dsn")
	ErrMissingMongoURI    = errors.New("mongo store requires mongo.uri")
	ErrInvalidSearchLimit = errors.New("search.maxReferences must be between 1 and 2")
)

// MaxReferences bounds the references kept per article and so its citation count.
const MaxReferences = 2

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Blog          BlogConfig         `yaml:"blog"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Search        SearchConfig       `yaml:"search"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Store         StoreConfig        `yaml:"store"`
	Database      DatabaseConfig     `yaml:"database"`
	Mongo         MongoConfig        `yaml:"mongo"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Events        EventsConfig       `yaml:"events"`
}

// LoggingConfig selects the slog level and handler ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BlogConfig describes the paginated index and crawl bounds.
type BlogConfig struct {
	Name         string `yaml:"name"`
	Scanner      string `yaml:"scanner"`
	BaseURL      string `yaml:"baseUrl"`
	MaxPagesBack int    `yaml:"maxPagesBack"`
	CandidateCap int    `yaml:"candidateCap"`
	OldestCount  int    `yaml:"oldestCount"`
}

// Origin returns scheme://host of the blog index.
func (b BlogConfig) Origin() string {
	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// FetchConfig tunes outbound page retrieval.
type FetchConfig struct {
	UserAgent        string        `yaml:"userAgent"`
	ArticleTimeout   time.Duration `yaml:"articleTimeout"`
	ReferenceTimeout time.Duration `yaml:"referenceTimeout"`
	MaxBodyBytes     int64         `yaml:"maxBodyBytes"`
	RespectRobots    bool          `yaml:"respectRobots"`
}

// SearchConfig defines the Google Custom Search integration.
type SearchConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"apiKey"`
	EngineID      string        `yaml:"engineId"`
	Results       int           `yaml:"results"`
	MaxReferences int           `yaml:"maxReferences"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Configured reports whether real search requests can be made.
func (s SearchConfig) Configured() bool {
	return s.APIKey != "" && s.EngineID != ""
}

// LLMConfig selects and tunes the rewrite provider.
type LLMConfig struct {
	Provider    string         `yaml:"provider"`
	APIKey      string         `yaml:"apiKey"`
	Temperature float64        `yaml:"temperature"`
	MaxTokens   int            `yaml:"maxTokens"`
	Timeout     time.Duration  `yaml:"timeout"`
	OpenAI      ProviderConfig `yaml:"openai"`
	Gemini      ProviderConfig `yaml:"gemini"`
}

// ProviderConfig defines how to contact a single LLM API.
type ProviderConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	OriginalLimit  int    `yaml:"originalLimit"`
	ReferenceLimit int    `yaml:"referenceLimit"`
	SystemPrompt   string `yaml:"systemPrompt"`
}

// PipelineConfig controls run pacing.
type PipelineConfig struct {
	Pause time.Duration `yaml:"pause"`
}

// StoreConfig picks the record store backend.
type StoreConfig struct {
	Driver     string        `yaml:"driver"`
	APIBaseURL string        `yaml:"apiBaseUrl"`
	FilePath   string        `yaml:"filePath"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MongoConfig describes the document store backend.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// ServerConfig is the record-store HTTP API listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// SchedulerConfig defines when the ingestion should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// EventsConfig enables Kafka enrichment events when brokers are set.
type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An explicit path that cannot be read is an error; the env path falls back to defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(configPathEnv)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err != nil && explicit:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		case err != nil:
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	u, err := url.Parse(c.Blog.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBlogURL, c.Blog.BaseURL)
	}
	if c.Blog.MaxPagesBack <= 0 || c.Blog.CandidateCap <= 0 || c.Blog.OldestCount <= 0 {
		return ErrInvalidCrawlBounds
	}
	if c.Search.MaxReferences < 1 || c.Search.MaxReferences > MaxReferences {
		return fmt.Errorf("%w: %d", ErrInvalidSearchLimit, c.Search.MaxReferences)
	}

	switch c.Store.Driver {
	case DriverHTTP, DriverFile:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return ErrMissingDSN
		}
	case DriverMongo:
		if c.Mongo.URI == "" {
			return ErrMissingMongoURI
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLLMProvider, c.LLM.Provider)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(blogBaseURLEnv); v != "" {
		c.Blog.BaseURL = v
	}

	if v := os.Getenv(apiBaseURLEnv); v != "" {
		c.Store.APIBaseURL = v
	}
	if v := os.Getenv(storeDriverEnv); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}

	if v := os.Getenv(googleAPIKeyEnv); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv(googleCXEnv); v != "" {
		c.Search.EngineID = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}

	if v := os.Getenv(cronScheduleEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(mongoURIEnv); v != "" {
		c.Mongo.URI = v
	}

	if v := os.Getenv(portEnv); v != "" {
		c.Server.Port = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Events.Brokers = splitCSV(v)
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Blog: BlogConfig{
			Name:         "beyondchats",
			Scanner:      "paginated-blog",
			BaseURL:      "https://beyondchats.com/blogs/",
			MaxPagesBack: 3,
			CandidateCap: 10,
			OldestCount:  5,
		},
		Fetch: FetchConfig{
			UserAgent:        "Mozilla/5.0 (compatible; ArticleBot/1.0)",
			ArticleTimeout:   15 * time.Second,
			ReferenceTimeout: 10 * time.Second,
			MaxBodyBytes:     5 << 20,
		},
		Search: SearchConfig{
			Endpoint:      "https://www.googleapis.com/customsearch/v1",
			Results:       5,
			MaxReferences: MaxReferences,
			Timeout:       10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    ProviderGemini,
			Temperature: 0.7,
			MaxTokens:   2048,
			Timeout:     60 * time.Second,
			OpenAI: ProviderConfig{
				Endpoint:       "https://api.openai.com/v1/chat/completions",
				Model:          "gpt-3.5-turbo",
				OriginalLimit:  4000,
				ReferenceLimit: 2000,
				SystemPrompt:   "You are a professional content writer who improves articles while maintaining accuracy.",
			},
			Gemini: ProviderConfig{
				Endpoint:       "https://generativelanguage.googleapis.com/v1beta/models",
				Model:          "gemini-2.0-flash",
				OriginalLimit:  3000,
				ReferenceLimit: 1500,
			},
		},
		Pipeline: PipelineConfig{Pause: time.Second},
		Store: StoreConfig{
			Driver:     DriverHTTP,
			APIBaseURL: "http://localhost:4000",
			FilePath:   "data/articles.json",
			Timeout:    10 * time.Second,
		},
		Mongo:     MongoConfig{Database: "blogenricher", Collection: "articles"},
		Server:    ServerConfig{Port: "4000"},
		Scheduler: SchedulerConfig{CronExpression: "0 3 * * *", Timezone: defaultTimezone, location: tz},
		Events:    EventsConfig{Topic: "articles.enriched"},
	}
}
