package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	ImagesDriverS3    = "s3"
	ImagesDriverLocal = "local"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	StorageDriver string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Auth        AuthConfig
	CORS        CORSConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Leaderboard LeaderboardConfig
	Scoreboard  ScoreboardConfig
	Images      ImagesConfig
	S3          S3Config
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// AuthConfig covers registration defaults and bootstrap seeding.
type AuthConfig struct {
	DefaultRole       string
	SeedDefaults      bool
	SeedAdminEmail    string
	SeedAdminPassword string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// LeaderboardConfig tunes leaderboard size and caching.
type LeaderboardConfig struct {
	Size     int
	CacheTTL time.Duration
}

// ScoreboardConfig sizes the live scoreboard broadcast workers.
type ScoreboardConfig struct {
	Workers int
	Retries int
}

// ImagesConfig governs image validation and the storage backend.
type ImagesConfig struct {
	Driver            string
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	SignedURLTTL      time.Duration
	SignedURLSecret   string
	LocalDir          string
	Timeout           time.Duration
	MaxRetries        int
}

// S3Config describes the object storage bucket used for images.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StorageDriver = strings.ToLower(v.GetString("STORAGE_DRIVER"))

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_CACHE"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 2*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Auth = AuthConfig{
		DefaultRole:       strings.ToUpper(v.GetString("AUTH_DEFAULT_ROLE")),
		SeedDefaults:      v.GetBool("SEED_DEFAULTS"),
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	size := v.GetInt("LEADERBOARD_SIZE")
	if size <= 0 {
		size = 5
	}
	cfg.Leaderboard = LeaderboardConfig{
		Size:     size,
		CacheTTL: parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.Scoreboard = ScoreboardConfig{
		Workers: v.GetInt("SCOREBOARD_WORKERS"),
		Retries: v.GetInt("SCOREBOARD_RETRIES"),
	}

	maxImageSize := v.GetInt64("IMAGES_MAX_FILE_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Images = ImagesConfig{
		Driver:            strings.ToLower(v.GetString("IMAGES_DRIVER")),
		MaxFileSizeBytes:  maxImageSize,
		AllowedExtensions: splitAndTrim(strings.ToLower(v.GetString("IMAGES_ALLOWED_EXTENSIONS"))),
		SignedURLTTL:      parseDuration(v.GetString("IMAGES_SIGNED_URL_TTL"), time.Hour),
		SignedURLSecret:   v.GetString("IMAGES_SIGNED_URL_SECRET"),
		LocalDir:          v.GetString("IMAGES_LOCAL_DIR"),
		Timeout:           parseDuration(v.GetString("IMAGES_TIMEOUT"), 10*time.Second),
		MaxRetries:        v.GetInt("IMAGES_MAX_RETRIES"),
	}

	cfg.S3 = S3Config{
		Bucket:       v.GetString("S3_BUCKET"),
		Region:       v.GetString("S3_REGION"),
		Endpoint:     v.GetString("S3_ENDPOINT"),
		AccessKey:    v.GetString("S3_ACCESS_KEY"),
		SecretKey:    v.GetString("S3_SECRET_KEY"),
		UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
		Prefix:       v.GetString("S3_PREFIX"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ct_platform")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "ctp-api")
	v.SetDefault("JWT_EXPIRATION", "2h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("AUTH_DEFAULT_ROLE", "STUDENT")
	v.SetDefault("SEED_DEFAULTS", true)
	v.SetDefault("SEED_ADMIN_EMAIL", "")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("LEADERBOARD_SIZE", 5)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "1m")
	v.SetDefault("SCOREBOARD_WORKERS", 2)
	v.SetDefault("SCOREBOARD_RETRIES", 3)

	v.SetDefault("IMAGES_DRIVER", ImagesDriverLocal)
	v.SetDefault("IMAGES_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("IMAGES_ALLOWED_EXTENSIONS", "jpg,jpeg,png,webp")
	v.SetDefault("IMAGES_SIGNED_URL_TTL", "1h")
	v.SetDefault("IMAGES_SIGNED_URL_SECRET", "dev_images_secret")
	v.SetDefault("IMAGES_LOCAL_DIR", "./uploads")
	v.SetDefault("IMAGES_TIMEOUT", "10s")
	v.SetDefault("IMAGES_MAX_RETRIES", 3)

	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("S3_PREFIX", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
