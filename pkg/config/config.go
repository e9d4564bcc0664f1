package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	OCR      OCRConfig      `yaml:"ocr"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxUploadBytes caps the multipart body of a scan request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

type StorageConfig struct {
	Driver          string `yaml:"driver"`
	UploadBase      string `yaml:"upload_base"`
	PublicBaseURL   string `yaml:"public_base_url"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

type CatalogConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	YGOProDeckURL    string        `yaml:"ygoprodeck_url"`
	PokemonTCGURL    string        `yaml:"pokemontcg_url"`
	PokemonTCGAPIKey string        `yaml:"pokemontcg_api_key"`
}

type OCRConfig struct {
	Language string `yaml:"language"`
	// CodePageSegMode is the Tesseract page segmentation mode for the set
	// code strip.
	CodePageSegMode int     `yaml:"code_page_seg_mode"`
	CodeRegion      float64 `yaml:"code_region"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const devSecret = "dev-insecure-secret-change"

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8081", MaxUploadBytes: 10 << 20},
		Database: DatabaseConfig{DSN: "cardscope.db", AutoMigrate: true},
		Auth: AuthConfig{
			JWTSecret:       devSecret,
			AccessTokenTTL:  24 * time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:        "auto",
			UploadBase:    "uploads",
			PublicBaseURL: "http://localhost:8081",
			Region:        "us-east-1",
		},
		Catalog: CatalogConfig{
			Timeout:       30 * time.Second,
			YGOProDeckURL: "https://db.ygoprodeck.com/api/v7",
			PokemonTCGURL: "https://api.pokemontcg.io/v2",
		},
		OCR: OCRConfig{Language: "eng", CodePageSegMode: 6, CodeRegion: 0.2},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a local .env file and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	LoadDotEnv(".env")
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	if c.OCR.CodeRegion <= 0 || c.OCR.CodeRegion > 1 {
		return fmt.Errorf("ocr.code_region must be in (0,1], got %v", c.OCR.CodeRegion)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive, got %v", c.Catalog.Timeout)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	return nil
}

// UsingDevSecret reports whether the JWT secret is still the built-in default.
func (c *Config) UsingDevSecret() bool { return c.Auth.JWTSecret == devSecret }

func (c *Config) applyEnv() error {
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Storage.UploadBase, "UPLOAD_BASE")
	setString(&c.Storage.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.Bucket, "AWS_STORAGE_BUCKET_NAME")
	setString(&c.Storage.Region, "AWS_REGION")
	setString(&c.Storage.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.Storage.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.Storage.Endpoint, "AWS_ENDPOINT_URL")
	setString(&c.Catalog.YGOProDeckURL, "YGOPRODECK_URL")
	setString(&c.Catalog.PokemonTCGURL, "POKEMONTCG_URL")
	setString(&c.Catalog.PokemonTCGAPIKey, "POKEMONTCG_API_KEY")
	setString(&c.OCR.Language, "OCR_LANGUAGE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		switch strings.ToLower(v) {
		case "false", "0", "no":
			c.Database.AutoMigrate = false
		default:
			c.Database.AutoMigrate = true
		}
	}
	if v := os.Getenv("CATALOG_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("CATALOG_TIMEOUT: %w", err)
		}
		c.Catalog.Timeout = d
	}
	return nil
}

// parseDuration accepts Go durations ("45s") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// LoadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func LoadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.Trim(strings.TrimSpace(line[eq+1:]), `"'`)
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
