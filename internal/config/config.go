package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gemini    GeminiConfig
	Storage   StorageConfig
	Templates TemplatesConfig
	Worker    WorkerConfig
	Auth      AuthConfig
	GitHub    GitHubConfig
	Redis     RedisConfig
	Qdrant    QdrantConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	Debug       bool
	ProjectName string
	Version     string
	APIPrefix   string
	CORSOrigins []string
	// UploadRateLimit is the number of resume submissions a client may make per minute.
	UploadRateLimit int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type GeminiConfig struct {
	APIKey            string
	VisionModel       string
	AgentModel        string
	EmbeddingModel    string
	RequestsPerMinute int
	Burst             int
}

type StorageConfig struct {
	Backend     string
	UploadPath  string
	MaxFileSize int64
	MinIO       MinIOConfig
}

type MinIOConfig struct {
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	Bucket           string
	Region           string
	UseSSL           bool
	AutoCreateBucket bool
}

type TemplatesConfig struct {
	Dir       string
	OutputDir string
	TopSkills int
}

type WorkerConfig struct {
	Concurrency     int
	QueueSize       int
	PollInterval    time.Duration
	StaleAfter      time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	SecretKey string
	Issuer    string
}

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	OAuthURL     string
}

type RedisConfig struct {
	URL string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

// Load reads the process environment (and an optional .env file) into a Config.
// Secrets have no defaults; call Validate before using the result.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found. Using environment and default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8000"),
			Env:             getEnv("ENV", "development"),
			Debug:           getEnvAsBool("DEBUG", false),
			ProjectName:     getEnv("PROJECT_NAME", "Showcase AI"),
			Version:         getEnv("APP_VERSION", "1.0.0"),
			APIPrefix:       getEnv("API_V1_STR", "/api/v1"),
			CORSOrigins:     ParseOrigins(getEnv("BACKEND_CORS_ORIGINS", "")),
			UploadRateLimit: getEnvAsInt("UPLOAD_RATE_LIMIT", 10),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "showcase"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "30m"),
		},
		Gemini: GeminiConfig{
			APIKey:            getEnv("GEMINI_API_KEY", ""),
			VisionModel:       getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
			AgentModel:        strings.TrimPrefix(getEnv("GEMINI_AGENT_MODEL", "gemini-2.5-flash"), "google:"),
			EmbeddingModel:    getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			RequestsPerMinute: getEnvAsInt("GEMINI_REQUESTS_PER_MINUTE", 5),
			Burst:             getEnvAsInt("GEMINI_BURST", 1),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
			MinIO: MinIOConfig{
				Endpoint:         getEnv("MINIO_ENDPOINT", "localhost:9000"),
				AccessKeyID:      getEnv("MINIO_ACCESS_KEY", ""),
				SecretAccessKey:  getEnv("MINIO_SECRET_KEY", ""),
				Bucket:           getEnv("MINIO_BUCKET", "showcase-resumes"),
				Region:           getEnv("MINIO_REGION", ""),
				UseSSL:           getEnvAsBool("MINIO_USE_SSL", false),
				AutoCreateBucket: getEnvAsBool("MINIO_AUTO_CREATE_BUCKET", true),
			},
		},
		Templates: TemplatesConfig{
			Dir:       getEnv("TEMPLATES_DIR", "./templates"),
			OutputDir: getEnv("OUTPUT_DIR", "./output"),
			TopSkills: getEnvAsInt("TEMPLATE_TOP_SKILLS", 10),
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvAsInt("WORKER_CONCURRENCY", 3),
			QueueSize:       getEnvAsInt("WORKER_QUEUE_SIZE", 100),
			PollInterval:    getEnvAsDuration("WORKER_POLL_INTERVAL", "10s"),
			StaleAfter:      getEnvAsDuration("WORKER_STALE_AFTER", "30m"),
			ShutdownTimeout: getEnvAsDuration("WORKER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Auth: AuthConfig{
			SecretKey: getEnv("SECRET_KEY", ""),
			Issuer:    getEnv("AUTH_ISSUER", ""),
		},
		GitHub: GitHubConfig{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
			APIBaseURL:   getEnv("GITHUB_API_URL", "https://api.github.com"),
			OAuthURL:     getEnv("GITHUB_OAUTH_URL", "https://github.com/login/oauth/access_token"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", ""),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "showcase_portfolios"),
		},
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	if c.Gemini.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("GEMINI_REQUESTS_PER_MINUTE must be positive"))
	}
	switch c.Storage.Backend {
	case "local":
	case "minio":
		if c.Storage.MinIO.AccessKeyID == "" || c.Storage.MinIO.SecretAccessKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c *Config) GetDatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// ParseOrigins accepts either a comma separated list or a JSON array.
func ParseOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return cleanOrigins(list)
		}
	}

	return cleanOrigins(strings.Split(raw, ","))
}

func cleanOrigins(list []string) []string {
	origins := make([]string, 0, len(list))
	for _, origin := range list {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
