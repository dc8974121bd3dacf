package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"` // debug, info, warn, error
		Dev   bool   `yaml:"dev"`
	} `yaml:"log"`

	Provider struct {
		Backend       string `yaml:"backend"` // gemini | openai
		GeminiAPIKey  string `yaml:"geminiApiKey"`
		OpenAIAPIKey  string `yaml:"openaiApiKey"`
		OpenAIBaseURL string `yaml:"openaiBaseUrl"`
	} `yaml:"provider"`

	Database struct {
		Driver       string `yaml:"driver"` // mysql | postgres | none
		Host         string `yaml:"host"`
		Port         int    `yaml:"port"`
		User         string `yaml:"user"`
		Password     string `yaml:"password"`
		Name         string `yaml:"name"`
		SSLMode      string `yaml:"sslMode"` // postgres only
		MaxOpenConns int    `yaml:"maxOpenConns"`
		MaxIdleConns int    `yaml:"maxIdleConns"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Auth struct {
		// APIKeys maps key -> stable user id. Empty map plus
		// allowAnonymous=true runs the service open.
		APIKeys        map[string]string `yaml:"apiKeys"`
		AllowAnonymous bool              `yaml:"allowAnonymous"`
	} `yaml:"auth"`

	Limits struct {
		InlineMaxBytes     int64 `yaml:"inlineMaxBytes"`
		PipelineTimeoutSec int   `yaml:"pipelineTimeoutSec"`
		Pass1ContextMax    int   `yaml:"pass1ContextMax"`
		Pass2ContextMax    int   `yaml:"pass2ContextMax"`
		Pass3ContextMax    int   `yaml:"pass3ContextMax"`
		RateCapacity       int   `yaml:"rateCapacity"`
		RateRefillPerSec   int   `yaml:"rateRefillPerSec"`
	} `yaml:"limits"`
}

// Load reads the yaml config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Provider.Backend == "" {
		c.Provider.Backend = "gemini"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Limits.InlineMaxBytes == 0 {
		c.Limits.InlineMaxBytes = 20 << 20
	}
	if c.Limits.PipelineTimeoutSec == 0 {
		c.Limits.PipelineTimeoutSec = 600
	}
	if c.Limits.Pass1ContextMax == 0 {
		c.Limits.Pass1ContextMax = 4000
	}
	if c.Limits.Pass2ContextMax == 0 {
		c.Limits.Pass2ContextMax = 5000
	}
	if c.Limits.Pass3ContextMax == 0 {
		c.Limits.Pass3ContextMax = 6000
	}
	if c.Limits.RateCapacity == 0 {
		c.Limits.RateCapacity = 30
	}
	if c.Limits.RateRefillPerSec == 0 {
		c.Limits.RateRefillPerSec = 1
	}
}

// PipelineTimeout as a duration.
func (c *Config) PipelineTimeout() time.Duration {
	return time.Duration(c.Limits.PipelineTimeoutSec) * time.Second
}

// MySQLDSN builds the mysql connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the postgres connection string.
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
