package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultRenderQueueSize  = 200
	defaultNumRenderWorkers = 2
	defaultThumbnailMaxSize = 300
	defaultMaxUploadBytes   = 20 << 20
	defaultListenAddr       = ":8080"
	defaultPublicMediaURL   = "/api/media"
)

type Config struct {
	// database paths
	DatabasePath string `yaml:"database_path"` // gorm: users, surveys, images
	CacheDBPath  string `yaml:"cache_db_path"` // render cache (database/sql)

	// media storage configuration
	MediaStoragePath string `yaml:"media_storage_path"` // root for uploads, renders, thumbnails, archives
	PublicMediaURL   string `yaml:"public_media_url"`   // prefix of the URLs handed out for stored files
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`

	// thumbnail generation settings
	ThumbnailMaxSize int `yaml:"thumbnail_max_size"`

	// worker settings
	RenderQueueSize  int `yaml:"render_queue_size"`
	NumRenderWorkers int `yaml:"num_render_workers"`

	// http
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		DatabasePath:     "fieldsurvey.db",
		CacheDBPath:      "cache.db",
		MediaStoragePath: filepath.Join(".", "media_storage"),
		PublicMediaURL:   defaultPublicMediaURL,
		MaxUploadBytes:   defaultMaxUploadBytes,
		ThumbnailMaxSize: defaultThumbnailMaxSize,
		RenderQueueSize:  defaultRenderQueueSize,
		NumRenderWorkers: defaultNumRenderWorkers,
		ListenAddr:       defaultListenAddr,
		AllowedOrigins:   []string{"http://localhost:5173"},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("config: Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvListOrDefault(envVar string, defaultVal []string) []string {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile overlays the YAML file at path on top of base.
func LoadFromFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, then environment variables, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		cfg, err = LoadFromFile(path, cfg)
		if err != nil {
			return Config{}, err
		}
		log.Printf("config: Loaded overlay from %s", path)
	}

	cfg.DatabasePath = getEnvOrDefault("DATABASE_PATH", cfg.DatabasePath)
	cfg.CacheDBPath = getEnvOrDefault("CACHE_DB_PATH", cfg.CacheDBPath)
	cfg.MediaStoragePath = getEnvOrDefault("MEDIA_STORAGE_PATH", cfg.MediaStoragePath)
	cfg.PublicMediaURL = getEnvOrDefault("PUBLIC_MEDIA_URL", cfg.PublicMediaURL)
	cfg.MaxUploadBytes = int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.ThumbnailMaxSize = getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", cfg.ThumbnailMaxSize)
	cfg.RenderQueueSize = getEnvIntOrDefault("RENDER_QUEUE_SIZE", cfg.RenderQueueSize)
	cfg.NumRenderWorkers = getEnvIntOrDefault("NUM_RENDER_WORKERS", cfg.NumRenderWorkers)
	cfg.AllowedOrigins = getEnvListOrDefault("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.JWTSecret)

	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.ListenAddr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}

	absMediaStorage, err := filepath.Abs(cfg.MediaStoragePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", cfg.MediaStoragePath, err)
	}
	cfg.MediaStoragePath = absMediaStorage

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.DatabasePath == "" || c.CacheDBPath == "" {
		return errors.New("config: database paths are required")
	}
	if !strings.HasPrefix(c.PublicMediaURL, "/") && !strings.HasPrefix(c.PublicMediaURL, "http") {
		return fmt.Errorf("config: public_media_url %q must be absolute", c.PublicMediaURL)
	}
	return nil
}
