package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig     BasicConfig               `json:"basic_config"`
	Databases       map[string]DatabaseConfig `json:"databases"`
	Redis           RedisConfig               `json:"redis"`
	Providers       map[string]ProviderConfig `json:"providers"`
	SkillExtraction SkillExtractionConfig     `json:"skill_extraction"`
	Upload          UploadConfig              `json:"upload"`
	ObjectStorage   ObjectStorageConfig       `json:"object_storage"`
	Events          EventsConfig              `json:"events"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// UploadDir is where staged resumes live for the duration of one request.
	UploadDir string `json:"upload_dir"`
	// StagingTTL and SweepInterval are minutes.
	StagingTTL    int `json:"staging_ttl"`
	SweepInterval int `json:"sweep_interval"`
	// TokenTTL is hours.
	TokenTTL int `json:"token_ttl"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type SkillExtractionConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float32 `json:"top_p"`
}

type UploadConfig struct {
	FieldName         string   `json:"field_name"`
	AllowedTypes      []string `json:"allowed_types"`
	AllowedExtensions []string `json:"allowed_extensions"`
	MaxSize           int64    `json:"max_size"`
	MaxFiles          int      `json:"max_files"`
}

type ObjectStorageConfig struct {
	Endpoint      string `json:"endpoint"`
	Region        string `json:"region"`
	Bucket        string `json:"bucket"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	PublicBaseURL string `json:"public_base_url"`
	Namespace     string `json:"namespace"`
	UsePathStyle  bool   `json:"use_path_style"`
}

type EventsConfig struct {
	// Driver is "redis", "amqp" or empty to disable publishing.
	Driver   string `json:"driver"`
	Channel  string `json:"channel"`
	AMQPURL  string `json:"amqp_url"`
	Exchange string `json:"exchange"`
}

const (
	DefaultFieldName = "resume"
	DefaultMaxSize   = 5 << 20 // 5 MB
	DefaultMaxFiles  = 1
)

var (
	DefaultAllowedTypes = []string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
	DefaultAllowedExtensions = []string{".pdf", ".docx", ".txt"}
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if sqliteCfg, ok := cfg.Databases["sqlite3"]; ok && sqliteCfg.DSN != "" && sqliteCfg.DSN != ":memory:" && !filepath.IsAbs(sqliteCfg.DSN) {
		sqliteCfg.DSN = filepath.Join(filepath.Dir(absPath), sqliteCfg.DSN)
		cfg.Databases["sqlite3"] = sqliteCfg
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with the service defaults.
func (c *Config) ApplyDefaults() {
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = "./data/uploads"
	}
	up := &c.Upload
	if up.FieldName == "" {
		up.FieldName = DefaultFieldName
	}
	if len(up.AllowedTypes) == 0 {
		up.AllowedTypes = append([]string(nil), DefaultAllowedTypes...)
	}
	if len(up.AllowedExtensions) == 0 {
		up.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	if up.MaxSize <= 0 {
		up.MaxSize = DefaultMaxSize
	}
	if up.MaxFiles <= 0 {
		up.MaxFiles = DefaultMaxFiles
	}

	se := &c.SkillExtraction
	if se.Provider == "" {
		se.Provider = "openai"
	}
	if se.Temperature == 0 {
		se.Temperature = 0.3
	}
	if se.MaxTokens == 0 {
		se.MaxTokens = 2000
	}
	if se.TopP == 0 {
		se.TopP = 0.9
	}

	if c.ObjectStorage.Namespace == "" {
		c.ObjectStorage.Namespace = "resumes"
	}
	if c.ObjectStorage.Region == "" {
		c.ObjectStorage.Region = "auto"
	}
	if c.Events.Channel == "" {
		c.Events.Channel = "resume:events"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "resume_events"
	}
}

// applyEnv lets secrets live outside the config file.
func (c *Config) applyEnv() {
	for name, prov := range c.Providers {
		if prov.APIKey == "" {
			prov.APIKey = strings.TrimSpace(os.Getenv(strings.ToUpper(name) + "_API_KEY"))
			c.Providers[name] = prov
		}
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" && c.ObjectStorage.AccessKey == "" {
		c.ObjectStorage.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" && c.ObjectStorage.SecretKey == "" {
		c.ObjectStorage.SecretKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" && c.Events.AMQPURL == "" {
		c.Events.AMQPURL = v
	}
}
