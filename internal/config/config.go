package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr            string        `yaml:"addr"`            // ":8080"
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // "15s"
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // "30s"
	IdleTimeout     time.Duration `yaml:"idleTimeout"`     // "60s"
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // "10s"
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|stage|prod
	Service   string `yaml:"service"` // "webinar-edge"
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend"` // std|zap
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Upstream struct {
	Target string `yaml:"target"` // приложение за прокси
}

type Security struct {
	// Секрет всегда из окружения, в yaml не хранится.
	JWTSecret  string        `yaml:"-"`
	ClockSkew  time.Duration `yaml:"clockSkew"`
	CORSOrigin string        `yaml:"corsOrigin"`
}

func (s Security) Validate() error {
	if s.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if s.ClockSkew < 0 || s.ClockSkew > time.Minute {
		return errors.New("security.clockSkew must be in [0..1m]")
	}

	return nil
}

type RateLimitCategory struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type RateLimit struct {
	Auth          RateLimitCategory `yaml:"auth"`
	API           RateLimitCategory `yaml:"api"`
	SweepInterval time.Duration     `yaml:"sweepInterval"`
}

type Redis struct {
	// Addr из окружения (REDIS_ADDR); пустой — in-memory store.
	Addr     string `yaml:"-"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	Logging   Logging   `yaml:"logging"`
	Upstream  Upstream  `yaml:"upstream"`
	Security  Security  `yaml:"security"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Redis     Redis     `yaml:"redis"`
}

func (c *Config) Validate() error {
	if c.Upstream.Target == "" {
		return errors.New("upstream.target is required")
	}

	return c.Security.Validate()
}

func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// секреты и адреса инфраструктуры только из окружения
	cfg.Security.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "webinar-edge"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.RateLimit.Auth.Requests == 0 {
		c.RateLimit.Auth = RateLimitCategory{Requests: 5, Window: 15 * time.Minute}
	}
	if c.RateLimit.API.Requests == 0 {
		c.RateLimit.API = RateLimitCategory{Requests: 300, Window: time.Minute}
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = 5 * time.Minute
	}
}

// IsProduction влияет на secure-куки, HSTS и CORS-политику.
func (c *Config) IsProduction() bool {
	return c.Logging.Env == "prod"
}
