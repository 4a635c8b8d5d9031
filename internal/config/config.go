package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	StorageType    string `yaml:"storageType"` // local | s3
	StoragePath    string `yaml:"storagePath"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	MediadorBaseURL     string `yaml:"mediadorBaseURL"`
	MediadorAPIURL      string `yaml:"mediadorAPIURL"`
	ScraperDelaySeconds int    `yaml:"scraperDelaySeconds"`
	ScraperUserAgent    string `yaml:"scraperUserAgent"`
	// ScraperItemLimit caps instruments per run when a trigger omits its own
	// limit; 0 means unlimited.
	ScraperItemLimit int `yaml:"scraperItemLimit"`

	// RegistryRequestsPerHour caps registry fetches per hour across all
	// collector replicas; 0 disables the cap. Needs redisAddr to be set.
	RegistryRequestsPerHour int `yaml:"registryRequestsPerHour"`

	BrowserEnabled        bool `yaml:"browserEnabled"`
	BrowserTimeoutSeconds int  `yaml:"browserTimeoutSeconds"`

	PdftoppmCommand  string `yaml:"pdftoppmCommand"`
	TesseractCommand string `yaml:"tesseractCommand"`
	OCRLanguage      string `yaml:"ocrLanguage"`
	OCRDPI           int    `yaml:"ocrDPI"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	SweepHour int `yaml:"sweepHour"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.StorageType = v
	}
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MEDIADOR_BASE_URL"); v != "" {
		cfg.MediadorBaseURL = v
	}
	if v := os.Getenv("MEDIADOR_API_URL"); v != "" {
		cfg.MediadorAPIURL = v
	}
	if v := os.Getenv("SCRAPER_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScraperDelaySeconds = n
		}
	}
	if v := os.Getenv("SCRAPER_USER_AGENT"); v != "" {
		cfg.ScraperUserAgent = v
	}
	if v := os.Getenv("SCRAPER_ITEM_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ScraperItemLimit = n
		}
	}
	if v := os.Getenv("REGISTRY_REQUESTS_PER_HOUR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RegistryRequestsPerHour = n
		}
	}
	if v := os.Getenv("BROWSER_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.BrowserEnabled = enabled
		}
	}
	if v := os.Getenv("TESSERACT_CMD"); v != "" {
		cfg.TesseractCommand = v
	}
	if v := os.Getenv("PDFTOPPM_CMD"); v != "" {
		cfg.PdftoppmCommand = v
	}
	if v := os.Getenv("OCR_LANG"); v != "" {
		cfg.OCRLanguage = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("AMQP_EXCHANGE"); v != "" {
		cfg.AMQPExchange = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StorageType == "" {
		cfg.StorageType = "local"
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./storage/documents"
	}
	if cfg.MediadorBaseURL == "" {
		cfg.MediadorBaseURL = "https://mediador.trabalho.gov.br"
	}
	if cfg.MediadorAPIURL == "" {
		cfg.MediadorAPIURL = cfg.MediadorBaseURL
	}
	if cfg.ScraperUserAgent == "" {
		cfg.ScraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if cfg.BrowserTimeoutSeconds <= 0 {
		cfg.BrowserTimeoutSeconds = 45
	}
	if cfg.PdftoppmCommand == "" {
		cfg.PdftoppmCommand = "pdftoppm"
	}
	if cfg.TesseractCommand == "" {
		cfg.TesseractCommand = "tesseract"
	}
	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = "por"
	}
	if cfg.OCRDPI <= 0 {
		cfg.OCRDPI = 300
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.StorageType != "local" && cfg.StorageType != "s3" {
		return fmt.Errorf("config: storageType must be local or s3, got %q", cfg.StorageType)
	}
	if cfg.StorageType == "s3" && (cfg.MinioEndpoint == "" || cfg.MinioBucket == "") {
		return errors.New("config: minioEndpoint and minioBucket are required when storageType=s3")
	}
	if cfg.ScraperDelaySeconds < 0 {
		return errors.New("config: scraperDelaySeconds must be >= 0")
	}
	if cfg.ScraperItemLimit < 0 {
		return errors.New("config: scraperItemLimit must be >= 0")
	}
	if cfg.RegistryRequestsPerHour < 0 {
		return errors.New("config: registryRequestsPerHour must be >= 0")
	}
	if cfg.RegistryRequestsPerHour > 0 && cfg.RedisAddr == "" {
		return errors.New("config: registryRequestsPerHour requires redisAddr")
	}
	if cfg.SweepHour < 0 || cfg.SweepHour > 23 {
		return errors.New("config: sweepHour must be between 0 and 23")
	}
	if cfg.AMQPURL != "" && cfg.AMQPExchange == "" {
		return errors.New("config: amqpExchange is required when amqpURL is set")
	}
	return nil
}
