package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		IdleTimeout     time.Duration `yaml:"idleTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		MaxUploadMB     int64         `yaml:"maxUploadMB"`
	} `yaml:"server"`

	Auth struct {
		// APIKeys maps tenant → key. Empty disables auth.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Enabled  bool `yaml:"enabled"`
		Capacity int  `yaml:"capacity"`
		Refill   int  `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`

	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`

	AI struct {
		// Provider: gemini | openai | anthropic
		Provider  string `yaml:"provider"`
		APIKey    string `yaml:"apiKey"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"maxTokens"`
	} `yaml:"ai"`

	Analysis struct {
		LocalRules bool   `yaml:"localRules"`
		Timezone   string `yaml:"timezone"`
	} `yaml:"analysis"`

	Sessions struct {
		Size          int           `yaml:"size"`
		TTL           time.Duration `yaml:"ttl"`
		SweepSchedule string        `yaml:"sweepSchedule"`
	} `yaml:"sessions"`

	Report struct {
		Brand            string `yaml:"brand"`
		Author           string `yaml:"author"`
		IncludeNotes     *bool  `yaml:"includeNotes"`
		IncludeQuestions *bool  `yaml:"includeQuestions"`
	} `yaml:"report"`

	Database struct {
		// Driver: "" (history off) | mysql | postgres | sqlite
		Driver        string        `yaml:"driver"`
		Host          string        `yaml:"host"`
		Port          int           `yaml:"port"`
		User          string        `yaml:"user"`
		Password      string        `yaml:"password"`
		Name          string        `yaml:"name"`
		SSLMode       string        `yaml:"sslMode"`
		Path          string        `yaml:"path"`
		Retention     time.Duration `yaml:"retention"`
		PurgeSchedule string        `yaml:"purgeSchedule"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool          `yaml:"enabled"`
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		LinkTTL    time.Duration `yaml:"linkTTL"`
	} `yaml:"minio"`

	Snapshot struct {
		Enabled    bool          `yaml:"enabled"`
		BrowserBin string        `yaml:"browserBin"`
		ControlURL string        `yaml:"controlURL"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"snapshot"`

	Slack struct {
		Token   string `yaml:"token"`
		Channel string `yaml:"channel"`
	} `yaml:"slack"`
}

// Load baca .env (kalau ada) lalu file config.yaml
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and environment overrides, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secrets from env win over the file
func (c *Config) applyEnv() {
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := firstEnv(providerKeyEnv(c.AI.Provider), "API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.Token = v
	}
}

func providerKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	}
	return "GEMINI_API_KEY"
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	// analyses wait on the model; keep write timeout generous
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 3 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 32
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.Refill == 0 {
		c.RateLimit.Refill = 2
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.AI.Provider = strings.ToLower(c.AI.Provider)
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.Analysis.Timezone == "" {
		c.Analysis.Timezone = "America/Sao_Paulo"
	}
	if c.Sessions.Size == 0 {
		c.Sessions.Size = 1024
	}
	if c.Sessions.TTL == 0 {
		c.Sessions.TTL = 2 * time.Hour
	}
	if c.Sessions.SweepSchedule == "" {
		c.Sessions.SweepSchedule = "*/5 * * * *"
	}
	if c.Report.Brand == "" {
		c.Report.Brand = "ModalPDV"
	}
	if c.Report.IncludeNotes == nil {
		t := true
		c.Report.IncludeNotes = &t
	}
	if c.Report.IncludeQuestions == nil {
		t := true
		c.Report.IncludeQuestions = &t
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Path == "" {
		c.Database.Path = "stockaudit.db"
	}
	if c.Database.PurgeSchedule == "" {
		c.Database.PurgeSchedule = "0 3 * * *"
	}
	if c.Minio.LinkTTL == 0 {
		c.Minio.LinkTTL = 24 * time.Hour
	}
	if c.Snapshot.Timeout == 0 {
		c.Snapshot.Timeout = 30 * time.Second
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.AI.Provider {
	case "gemini", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("ai.provider: unknown %q", c.AI.Provider))
	}
	switch c.Database.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown %q", c.Database.Driver))
	}
	if _, err := time.LoadLocation(c.Analysis.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("analysis.timezone: %w", err))
	}
	if c.Sessions.Size < 0 {
		errs = append(errs, errors.New("sessions.size must be positive"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio: endpoint and bucketName are required when enabled"))
	}
	if (c.Slack.Token == "") != (c.Slack.Channel == "") {
		errs = append(errs, errors.New("slack: token and channel go together"))
	}
	return errors.Join(errs...)
}

// Location resolves analysis.timezone; Validate already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN in lib/pq keyword form.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
