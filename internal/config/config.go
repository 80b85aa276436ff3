package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gemini     GeminiConfig
	Storage    StorageConfig
	Worker     WorkerConfig
	Evaluation EvaluationConfig
	Extractor  ExtractorConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the metadata store backend: memory, redis or postgres.
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type WorkerConfig struct {
	Concurrency  int
	QueueSize    int
	StaleAfter   time.Duration
	SweepEvery   time.Duration
	ExtractLimit time.Duration
}

type EvaluationConfig struct {
	MinJobDescriptionLength int
}

type ExtractorConfig struct {
	Disabled []string
}

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

var defaults = map[string]any{
	"PORT":                       "3000",
	"ENV":                        "development",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "console",
	"STORE_DRIVER":               StoreMemory,
	"DB_HOST":                    "localhost",
	"DB_PORT":                    "5432",
	"DB_USER":                    "postgres",
	"DB_PASSWORD":                "postgres",
	"DB_NAME":                    "resume_crunch",
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"REDIS_KEY_PREFIX":           "resumecrunch",
	"GEMINI_API_KEY":             "",
	"GEMINI_MODEL":               "gemini-2.5-flash",
	"ORACLE_TIMEOUT":             "90s",
	"ORACLE_MAX_ATTEMPTS":        1,
	"UPLOAD_PATH":                "./resumes",
	"MAX_FILE_SIZE":              10485760,
	"WORKER_CONCURRENCY":         3,
	"WORKER_QUEUE_SIZE":          100,
	"WORKER_STALE_AFTER":         "10m",
	"WORKER_SWEEP_INTERVAL":      "30s",
	"EXTRACT_TIMEOUT":            "60s",
	"MIN_JOB_DESCRIPTION_LENGTH": 10,
	"EXTRACTOR_DISABLED":         "",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		Gemini: GeminiConfig{
			APIKey:      v.GetString("GEMINI_API_KEY"),
			Model:       v.GetString("GEMINI_MODEL"),
			Timeout:     v.GetDuration("ORACLE_TIMEOUT"),
			MaxAttempts: v.GetInt("ORACLE_MAX_ATTEMPTS"),
		},
		Storage: StorageConfig{
			UploadPath:  v.GetString("UPLOAD_PATH"),
			MaxFileSize: v.GetInt64("MAX_FILE_SIZE"),
		},
		Worker: WorkerConfig{
			Concurrency:  v.GetInt("WORKER_CONCURRENCY"),
			QueueSize:    v.GetInt("WORKER_QUEUE_SIZE"),
			StaleAfter:   v.GetDuration("WORKER_STALE_AFTER"),
			SweepEvery:   v.GetDuration("WORKER_SWEEP_INTERVAL"),
			ExtractLimit: v.GetDuration("EXTRACT_TIMEOUT"),
		},
		Evaluation: EvaluationConfig{
			MinJobDescriptionLength: v.GetInt("MIN_JOB_DESCRIPTION_LENGTH"),
		},
		Extractor: ExtractorConfig{
			Disabled: splitList(v.GetString("EXTRACTOR_DISABLED")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work and clamps the oracle attempts:
// the oracle is billed per call, so at most one retry is allowed.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Gemini.MaxAttempts < 1 {
		c.Gemini.MaxAttempts = 1
	}
	if c.Gemini.MaxAttempts > 2 {
		c.Gemini.MaxAttempts = 2
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive")
	}
	if c.Worker.Concurrency < 1 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.QueueSize < 1 {
		c.Worker.QueueSize = 1
	}
	if c.Evaluation.MinJobDescriptionLength < 1 {
		c.Evaluation.MinJobDescriptionLength = 1
	}
	return nil
}

// JobTimeout bounds one evaluation: extraction plus every oracle attempt.
func (c *Config) JobTimeout() time.Duration {
	return c.Worker.ExtractLimit + time.Duration(c.Gemini.MaxAttempts)*c.Gemini.Timeout
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
