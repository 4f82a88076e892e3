package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	App        AppConfig
	Thresholds ThresholdsConfig
	Costs      CostsConfig
	Columns    ColumnsConfig
	Cache      CacheConfig
	Storage    StorageConfig
	Drive      DriveConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir   string
	DataDir     string
	SnapshotDir string
}

// ThresholdsConfig says where the min/max sheet lives. Exactly one of Path,
// DriveFileID or ObjectKey is expected; there is no built-in default.
type ThresholdsConfig struct {
	Path            string
	DriveFileID     string
	ObjectKey       string
	LeadingPrefixes []string
}

type CostsConfig struct {
	Source     string // none, file, postgres, sqlite
	Path       string
	SQLitePath string
}

// ColumnsConfig declares the stock extract's column names. Empty names are
// resolved heuristically when HeuristicFallback is set.
type ColumnsConfig struct {
	Location          string
	Product           string
	Quantity          string
	HeuristicFallback bool
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ReportTTLSeconds int
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		setDefaults(v)

		// Read from environment variables
		v.AutomaticEnv()

		instance = fromViper(v)

		ensureDir(instance.App.UploadDir)
		ensureDir(instance.App.DataDir)
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "replenish")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_DATA_DIR", "./data/output")
	v.SetDefault("APP_SNAPSHOT_DIR", "./data/snapshots")
	v.SetDefault("THRESHOLDS_PATH", "")
	v.SetDefault("THRESHOLDS_DRIVE_FILE_ID", "")
	v.SetDefault("THRESHOLDS_OBJECT_KEY", "")
	v.SetDefault("THRESHOLDS_LEADING_PREFIXES", "")
	v.SetDefault("COSTS_SOURCE", "none")
	v.SetDefault("COSTS_PATH", "")
	v.SetDefault("COSTS_SQLITE_PATH", "")
	v.SetDefault("COLUMNS_LOCATION", "")
	v.SetDefault("COLUMNS_PRODUCT", "")
	v.SetDefault("COLUMNS_QUANTITY", "")
	v.SetDefault("COLUMNS_HEURISTIC_FALLBACK", true)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_REPORT_TTL_SECONDS", 300)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			UploadDir:   v.GetString("APP_UPLOAD_DIR"),
			DataDir:     v.GetString("APP_DATA_DIR"),
			SnapshotDir: v.GetString("APP_SNAPSHOT_DIR"),
		},
		Thresholds: ThresholdsConfig{
			Path:            v.GetString("THRESHOLDS_PATH"),
			DriveFileID:     v.GetString("THRESHOLDS_DRIVE_FILE_ID"),
			ObjectKey:       v.GetString("THRESHOLDS_OBJECT_KEY"),
			LeadingPrefixes: splitList(v.GetString("THRESHOLDS_LEADING_PREFIXES")),
		},
		Costs: CostsConfig{
			Source:     strings.ToLower(strings.TrimSpace(v.GetString("COSTS_SOURCE"))),
			Path:       v.GetString("COSTS_PATH"),
			SQLitePath: v.GetString("COSTS_SQLITE_PATH"),
		},
		Columns: ColumnsConfig{
			Location:          strings.TrimSpace(v.GetString("COLUMNS_LOCATION")),
			Product:           strings.TrimSpace(v.GetString("COLUMNS_PRODUCT")),
			Quantity:          strings.TrimSpace(v.GetString("COLUMNS_QUANTITY")),
			HeuristicFallback: v.GetBool("COLUMNS_HEURISTIC_FALLBACK"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			ReportTTLSeconds: v.GetInt("CACHE_REPORT_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// splitList parses a comma separated env value into trimmed, non-empty parts.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
