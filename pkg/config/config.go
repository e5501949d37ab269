package config

import (
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/joho/godotenv"
)

var ErrRegistry = errx.NewRegistry("CONFIG")

var (
	CodeMissing = ErrRegistry.Register("MISSING", errx.TypeValidation, http.StatusInternalServerError, "Required configuration is missing")
	CodeInvalid = ErrRegistry.Register("INVALID", errx.TypeValidation, http.StatusInternalServerError, "Configuration value is invalid")
)

func ErrMissing() *errx.Error { return ErrRegistry.New(CodeMissing) }
func ErrInvalid() *errx.Error { return ErrRegistry.New(CodeInvalid) }

// Mode selects which settings Validate requires.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeImport Mode = "import"
	ModeServe  Mode = "serve"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig
	Storage  StorageConfig
	OCR      OCRConfig
	AI       AIConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	API      APIConfig
	Log      LogConfig
}

type StoreConfig struct {
	URL        string
	Database   string
	Collection string
	Username   string
	Password   string
}

type StorageConfig struct {
	BaseURL    string
	Bucket     string
	S3Endpoint string
	S3Region   string
}

type OCRConfig struct {
	Provider      string // "azure" or "openai"
	AzureEndpoint string
	AzureKey      string
	AzureModel    string
	PollInterval  time.Duration
}

type AIConfig struct {
	OpenAIKey         string
	VisionModel       string
	EmbeddingsEnabled bool
}

type CacheConfig struct {
	RedisAddr string
	RedisPass string
	TTL       time.Duration
}

type PipelineConfig struct {
	SourceFile          string
	TempFolder          string
	KeepTempFiles       bool
	DocumentConcurrency int
	FetchTimeout        time.Duration
	SkipExisting        bool
	WritePacing         time.Duration
	ThrottleBaseDelay   time.Duration
	ThrottleMaxAttempts int
}

type APIConfig struct {
	Port       string
	JWTSecret  string
	APIKeyHash string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logx.Debugf("no .env file loaded: %v", err)
	}

	return &Config{
		Store: StoreConfig{
			URL:        firstEnv("STORE_URL", "COSMOS_CONNECTION_STRING", "MONGODB_CONNECTION_STRING"),
			Database:   getEnv("STORE_DATABASE", "SEEG-AI"),
			Collection: getEnv("STORE_COLLECTION", "candidats"),
			Username:   getEnv("STORE_USERNAME", ""),
			Password:   getEnv("STORE_PASSWORD", ""),
		},
		Storage: StorageConfig{
			BaseURL:    strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			Bucket:     getEnv("SUPABASE_BUCKET_NAME", "application-documents"),
			S3Endpoint: getEnv("STORAGE_S3_ENDPOINT", ""),
			S3Region:   getEnv("STORAGE_S3_REGION", "us-east-1"),
		},
		OCR: OCRConfig{
			Provider:      strings.ToLower(getEnv("OCR_PROVIDER", "azure")),
			AzureEndpoint: strings.TrimRight(getEnv("AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT", ""), "/"),
			AzureKey:      getEnv("AZURE_DOCUMENT_INTELLIGENCE_KEY", ""),
			AzureModel:    getEnv("AZURE_DOCUMENT_INTELLIGENCE_MODEL", "prebuilt-read"),
			PollInterval:  getEnvAsDuration("AZURE_DOCUMENT_INTELLIGENCE_POLL_INTERVAL", time.Second),
		},
		AI: AIConfig{
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			VisionModel:       getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
			EmbeddingsEnabled: getEnvAsBool("EMBEDDINGS_ENABLED", false),
		},
		Cache: CacheConfig{
			RedisAddr: getEnv("REDIS_ADDR", ""),
			RedisPass: getEnv("REDIS_PASS", ""),
			TTL:       getEnvAsDuration("OCR_CACHE_TTL", 720*time.Hour),
		},
		Pipeline: PipelineConfig{
			SourceFile:          getEnv("SOURCE_FILE", "data/Donnees_candidatures_SEEG.json"),
			TempFolder:          getEnv("TEMP_FOLDER", "./temp"),
			KeepTempFiles:       getEnvAsBool("KEEP_TEMP_FILES", false),
			DocumentConcurrency: getEnvAsInt("DOCUMENT_CONCURRENCY", 2),
			FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT", 60*time.Second),
			SkipExisting:        getEnvAsBool("SKIP_EXISTING", true),
			WritePacing:         getEnvAsDuration("WRITE_PACING", 300*time.Millisecond),
			ThrottleBaseDelay:   getEnvAsDuration("THROTTLE_BASE_DELAY", 2*time.Second),
			ThrottleMaxAttempts: getEnvAsInt("THROTTLE_MAX_ATTEMPTS", 3),
		},
		API: APIConfig{
			Port:       getEnv("PORT", "8080"),
			JWTSecret:  getEnv("API_JWT_SECRET", ""),
			APIKeyHash: getEnv("API_KEY_HASH", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}
}

// StoreURL returns the connection string with <user>/<password> placeholders
// substituted from the configured credentials.
func (c *Config) StoreURL() string {
	u := c.Store.URL
	if c.Store.Username != "" {
		u = strings.ReplaceAll(u, "<user>", url.QueryEscape(c.Store.Username))
		u = strings.ReplaceAll(u, "<username>", url.QueryEscape(c.Store.Username))
	}
	if c.Store.Password != "" {
		u = strings.ReplaceAll(u, "<password>", url.QueryEscape(c.Store.Password))
	}
	return u
}

// StoreScheme returns the lower-cased scheme of the store URL.
func (c *Config) StoreScheme() string {
	u := c.StoreURL()
	i := strings.Index(u, "://")
	if i < 0 {
		return ""
	}
	return strings.ToLower(u[:i])
}

// Validate reports every setting mode needs but does not have.
func (c *Config) Validate(mode Mode) error {
	var missing []string

	if c.Store.URL == "" {
		missing = append(missing, "STORE_URL")
	} else if strings.Contains(c.StoreURL(), "<password>") {
		missing = append(missing, "STORE_PASSWORD")
	}

	switch c.StoreScheme() {
	case "mongodb", "mongodb+srv", "postgres", "postgresql", "memory":
	case "":
		if c.Store.URL == "" {
			break
		}
		fallthrough
	default:
		return ErrInvalid().
			WithDetail("setting", "STORE_URL").
			WithDetail("scheme", c.StoreScheme())
	}

	if mode == ModeRun {
		if c.Storage.BaseURL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		switch c.OCR.Provider {
		case "azure":
			if c.OCR.AzureEndpoint == "" {
				missing = append(missing, "AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT")
			}
			if c.OCR.AzureKey == "" {
				missing = append(missing, "AZURE_DOCUMENT_INTELLIGENCE_KEY")
			}
		case "openai":
			if c.AI.OpenAIKey == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
		default:
			return ErrInvalid().
				WithDetail("setting", "OCR_PROVIDER").
				WithDetail("value", c.OCR.Provider)
		}
		if c.AI.EmbeddingsEnabled && c.AI.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
		if c.Pipeline.DocumentConcurrency < 1 {
			return ErrInvalid().
				WithDetail("setting", "DOCUMENT_CONCURRENCY").
				WithDetail("value", c.Pipeline.DocumentConcurrency)
		}
	}

	if len(missing) > 0 {
		return ErrMissing().WithDetail("settings", missing)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
