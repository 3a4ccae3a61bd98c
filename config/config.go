package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort   string
	JWTSecret string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Metadata store (MySQL)
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Blob store (MinIO / any S3-compatible endpoint)
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicBase string // base URL for derived public object URLs
	StorageNodeName string
	// Redis for token blacklist and OAuth state
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Rate limiting and CORS
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Upload limits
	UploadMaxSizeMB int
	// OAuth sign-in
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectBase  string
	// Background reconciliation of the two stores
	ReconcileIntervalMinutes    int
	ReconcileOrphanGraceMinutes int
	ReconcileDeleteOrphans      bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// jsonConfig mirrors AppConfig with snake_case keys for config/config.json.
type jsonConfig struct {
	AppPort                     *string  `json:"app_port"`
	JWTSecret                   *string  `json:"jwt_secret"`
	GinMode                     *string  `json:"gin_mode"`
	GinPath                     *string  `json:"gin_log_path"`
	DatabaseURI                 *string  `json:"database_uri"`
	DBHost                      *string  `json:"db_host"`
	DBPort                      *string  `json:"db_port"`
	DBUser                      *string  `json:"db_user"`
	DBPassword                  *string  `json:"db_password"`
	DBName                      *string  `json:"db_name"`
	MinioEndpoint               *string  `json:"minio_endpoint"`
	MinioAccessKey              *string  `json:"minio_access_key"`
	MinioSecretKey              *string  `json:"minio_secret_key"`
	MinioBucket                 *string  `json:"minio_bucket"`
	MinioUseSSL                 *bool    `json:"minio_use_ssl"`
	MinioPublicBase             *string  `json:"minio_public_base"`
	StorageNodeName             *string  `json:"storage_node_name"`
	RedisHost                   *string  `json:"redis_host"`
	RedisPort                   *int     `json:"redis_port"`
	RedisDB                     *int     `json:"redis_db"`
	RedisPassword               *string  `json:"redis_password"`
	LogLevel                    *string  `json:"log_level"`
	LogPath                     *string  `json:"log_path"`
	LogMaxSizeMB                *int     `json:"log_max_size_mb"`
	LogMaxBackups               *int     `json:"log_max_backups"`
	LogMaxAgeDays               *int     `json:"log_max_age_days"`
	LogCompress                 *bool    `json:"log_compress"`
	RateLimitPerMinute          *int     `json:"rate_limit_per_minute"`
	AllowedOrigins              []string `json:"allowed_origins"`
	UploadMaxSizeMB             *int     `json:"upload_max_size_mb"`
	GitHubClientID              *string  `json:"github_client_id"`
	GitHubClientSecret          *string  `json:"github_client_secret"`
	OAuthRedirectBase           *string  `json:"oauth_redirect_base"`
	ReconcileIntervalMinutes    *int     `json:"reconcile_interval_minutes"`
	ReconcileOrphanGraceMinutes *int     `json:"reconcile_orphan_grace_minutes"`
	ReconcileDeleteOrphans      *bool    `json:"reconcile_delete_orphans"`
}

func loadJSONConfig(path string, out *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jc jsonConfig
	if err := json.Unmarshal(raw, &jc); err != nil {
		log.Printf("warning: invalid %s: %v", path, err)
		return err
	}

	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(&out.AppPort, jc.AppPort)
	setStr(&out.JWTSecret, jc.JWTSecret)
	setStr(&out.GinMode, jc.GinMode)
	setStr(&out.GinPath, jc.GinPath)
	setStr(&out.DatabaseURI, jc.DatabaseURI)
	setStr(&out.DBHost, jc.DBHost)
	setStr(&out.DBPort, jc.DBPort)
	setStr(&out.DBUser, jc.DBUser)
	setStr(&out.DBPassword, jc.DBPassword)
	setStr(&out.DBName, jc.DBName)
	setStr(&out.MinioEndpoint, jc.MinioEndpoint)
	setStr(&out.MinioAccessKey, jc.MinioAccessKey)
	setStr(&out.MinioSecretKey, jc.MinioSecretKey)
	setStr(&out.MinioBucket, jc.MinioBucket)
	setBool(&out.MinioUseSSL, jc.MinioUseSSL)
	setStr(&out.MinioPublicBase, jc.MinioPublicBase)
	setStr(&out.StorageNodeName, jc.StorageNodeName)
	setStr(&out.RedisHost, jc.RedisHost)
	setInt(&out.RedisPort, jc.RedisPort)
	setInt(&out.RedisDB, jc.RedisDB)
	setStr(&out.RedisPassword, jc.RedisPassword)
	setStr(&out.LogLevel, jc.LogLevel)
	setStr(&out.LogPath, jc.LogPath)
	setInt(&out.LogMaxSizeMB, jc.LogMaxSizeMB)
	setInt(&out.LogMaxBackups, jc.LogMaxBackups)
	setInt(&out.LogMaxAgeDays, jc.LogMaxAgeDays)
	setBool(&out.LogCompress, jc.LogCompress)
	setInt(&out.RateLimitPerMinute, jc.RateLimitPerMinute)
	if len(jc.AllowedOrigins) > 0 {
		out.AllowedOrigins = jc.AllowedOrigins
	}
	setInt(&out.UploadMaxSizeMB, jc.UploadMaxSizeMB)
	setStr(&out.GitHubClientID, jc.GitHubClientID)
	setStr(&out.GitHubClientSecret, jc.GitHubClientSecret)
	setStr(&out.OAuthRedirectBase, jc.OAuthRedirectBase)
	setInt(&out.ReconcileIntervalMinutes, jc.ReconcileIntervalMinutes)
	setInt(&out.ReconcileOrphanGraceMinutes, jc.ReconcileOrphanGraceMinutes)
	setBool(&out.ReconcileDeleteOrphans, jc.ReconcileDeleteOrphans)
	return nil
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "filevault"
	}
	if c.DBName == "" {
		c.DBName = "filevault"
	}
	if c.MinioBucket == "" {
		c.MinioBucket = "filevault"
	}
	if c.StorageNodeName == "" {
		c.StorageNodeName = "primary"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.UploadMaxSizeMB == 0 {
		c.UploadMaxSizeMB = 50
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:" + c.AppPort
	}
	if c.ReconcileIntervalMinutes == 0 {
		c.ReconcileIntervalMinutes = 10
	}
	if c.ReconcileOrphanGraceMinutes == 0 {
		c.ReconcileOrphanGraceMinutes = 60
	}
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_LOG_PATH", c.GinPath)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getEnv("MINIO_BUCKET", c.MinioBucket)
	c.MinioUseSSL = getEnvBool("MINIO_USE_SSL", c.MinioUseSSL)
	c.MinioPublicBase = getEnv("MINIO_PUBLIC_BASE", c.MinioPublicBase)
	c.StorageNodeName = getEnv("STORAGE_NODE_NAME", c.StorageNodeName)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnvInt("REDIS_PORT", c.RedisPort)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	c.LogMaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", c.LogMaxSizeMB)
	c.LogMaxBackups = getEnvInt("LOG_MAX_BACKUPS", c.LogMaxBackups)
	c.LogMaxAgeDays = getEnvInt("LOG_MAX_AGE_DAYS", c.LogMaxAgeDays)
	c.LogCompress = getEnvBool("LOG_COMPRESS", c.LogCompress)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		c.AllowedOrigins = splitAndTrim(raw)
	}
	c.UploadMaxSizeMB = getEnvInt("UPLOAD_MAX_SIZE_MB", c.UploadMaxSizeMB)
	c.GitHubClientID = getEnv("GITHUB_CLIENT_ID", c.GitHubClientID)
	c.GitHubClientSecret = getEnv("GITHUB_CLIENT_SECRET", c.GitHubClientSecret)
	c.OAuthRedirectBase = getEnv("OAUTH_REDIRECT_BASE", c.OAuthRedirectBase)
	c.ReconcileIntervalMinutes = getEnvInt("RECONCILE_INTERVAL_MINUTES", c.ReconcileIntervalMinutes)
	c.ReconcileOrphanGraceMinutes = getEnvInt("RECONCILE_ORPHAN_GRACE_MINUTES", c.ReconcileOrphanGraceMinutes)
	c.ReconcileDeleteOrphans = getEnvBool("RECONCILE_DELETE_ORPHANS", c.ReconcileDeleteOrphans)
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("warning: %s is not an integer, keeping %d", key, defaultVal)
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
