package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const maxLookbackDays = 90

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Forecast  ForecastConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	LogLevel       string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// ForecastConfig tunes the replenishment engine and its batch fan-out.
type ForecastConfig struct {
	LookbackDays       int
	Workers            int
	ItemTimeoutSeconds int
	DefaultLimit       int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
	FolderPath      string
	DownloadDir     string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from the environment (and .env when present).
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Forecast: ForecastConfig{
			LookbackDays:       clampLookback(v.GetInt("FORECAST_LOOKBACK_DAYS")),
			Workers:            atLeastOne(v.GetInt("FORECAST_WORKERS")),
			ItemTimeoutSeconds: atLeastOne(v.GetInt("FORECAST_ITEM_TIMEOUT_SECONDS")),
			DefaultLimit:       v.GetInt("FORECAST_DEFAULT_LIMIT"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("SALES_DRIVE_FOLDER_ID"),
			FolderPath:      v.GetString("SALES_DRIVE_FOLDER_PATH"),
			DownloadDir:     v.GetString("SALES_DOWNLOAD_DIR"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  v.GetString("SERVICE_NAME"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "restock")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 60)

	v.SetDefault("FORECAST_LOOKBACK_DAYS", 30)
	v.SetDefault("FORECAST_WORKERS", 4)
	v.SetDefault("FORECAST_ITEM_TIMEOUT_SECONDS", 5)
	v.SetDefault("FORECAST_DEFAULT_LIMIT", 50)

	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_BUCKET", "restock-exports")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)

	v.SetDefault("SALES_DOWNLOAD_DIR", "./data/uploads/sales")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("SERVICE_NAME", "restock")
}

// DSN returns DATABASE_URL when set, otherwise a lib/pq key/value string.
func (c DatabaseConfig) DSN() string {
	if strings.TrimSpace(c.URL) != "" {
		return c.URL
	}
	return "host=" + c.Host + " port=" + c.Port + " user=" + c.User +
		" password=" + c.Password + " dbname=" + c.DBName + " sslmode=" + c.SSLMode
}

func clampLookback(days int) int {
	if days <= 0 {
		return 30
	}
	if days > maxLookbackDays {
		return maxLookbackDays
	}
	return days
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
