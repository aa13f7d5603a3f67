// Package config provides configuration loading and structs for the weave server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Generation    GenerationConfig    `yaml:"generation"`
	Answer        AnswerConfig        `yaml:"answer"`
	Qualification QualificationConfig `yaml:"qualification"`
	Escalation    EscalationConfig    `yaml:"escalation"`
	Audit         AuditConfig         `yaml:"audit"`
	Ingest        IngestConfig        `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the content store location and blob backend.
type StorageConfig struct {
	DatabasePath   string   `yaml:"database_path"`
	BleveIndexPath string   `yaml:"bleve_index_path"`
	BlobBackend    string   `yaml:"blob_backend"` // sqlite or s3
	S3             S3Config `yaml:"s3"`
}

// S3Config holds S3 blob backend settings. Credentials fall back to the default AWS chain.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// RetrievalConfig holds retrieval index settings. When RemoteURL is set the HTTP index is used.
type RetrievalConfig struct {
	RemoteURL string        `yaml:"remote_url"`
	TopK      int           `yaml:"top_k"`
	SafeTopK  int           `yaml:"safe_top_k"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GenerationConfig holds generator settings. Temperature is always 0 and not configurable.
type GenerationConfig struct {
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	APIKey    string        `yaml:"-"`
}

// AnswerConfig holds the refusal contract and resolver behaviour.
type AnswerConfig struct {
	RefusalMessage    string `yaml:"refusal_message"`
	VerifyContentHash *bool  `yaml:"verify_content_hash"`
}

// VerifyContentHashOrDefault returns whether fetched content is checked against its hash; defaults to true.
func (a *AnswerConfig) VerifyContentHashOrDefault() bool {
	if a.VerifyContentHash != nil {
		return *a.VerifyContentHash
	}
	return true
}

// QualificationConfig holds the rule file location. An empty RulesPath uses the built-in rules.
type QualificationConfig struct {
	RulesPath string `yaml:"rules_path"`
	Watch     bool   `yaml:"watch"`
}

// EscalationConfig holds outbound messaging settings.
type EscalationConfig struct {
	SlackWebhookURL string        `yaml:"-"`
	WhatsAppAPIURL  string        `yaml:"whatsapp_api_url"`
	WhatsAppToken   string        `yaml:"-"`
	NotifyTimeout   time.Duration `yaml:"notify_timeout"`
	ReplyTimeout    time.Duration `yaml:"reply_timeout"`
	HistoryLimit    int           `yaml:"history_limit"`
	AckMessage      string        `yaml:"ack_message"`
}

// AuditConfig holds audit sink settings.
type AuditConfig struct {
	Backend      string        `yaml:"backend"` // sqlite, postgres or http
	DatabasePath string        `yaml:"database_path"`
	PostgresDSN  string        `yaml:"-"`
	ServiceURL   string        `yaml:"service_url"`
	BufferSize   int           `yaml:"buffer_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

// IngestConfig holds chunking settings used when approving documents. When WatchDir is
// set the server ingests files dropped there, approved as ApprovedBy.
type IngestConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	WatchDir     string `yaml:"watch_dir"`
	ApprovedBy   string `yaml:"approved_by"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.LookupEnv)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Audit.DatabasePath = expandPath(cfg.Audit.DatabasePath, configDir)
	if cfg.Ingest.WatchDir != "" {
		cfg.Ingest.WatchDir = expandPath(cfg.Ingest.WatchDir, configDir)
	}
	if cfg.Qualification.RulesPath != "" {
		cfg.Qualification.RulesPath = expandPath(cfg.Qualification.RulesPath, configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment. lookup is os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.Generation.APIKey, "GEMINI_API_KEY")
	set(&cfg.Escalation.SlackWebhookURL, "SLACK_WEBHOOK_URL")
	set(&cfg.Escalation.WhatsAppAPIURL, "WHATSAPP_API_URL")
	set(&cfg.Escalation.WhatsAppToken, "WHATSAPP_TOKEN")
	set(&cfg.Audit.PostgresDSN, "AUDIT_DATABASE_URL")
	set(&cfg.Audit.ServiceURL, "LOG_SERVICE_URL")
	set(&cfg.Retrieval.RemoteURL, "RETRIEVAL_URL")
	set(&cfg.Storage.S3.AccessKey, "AWS_ACCESS_KEY_ID")
	set(&cfg.Storage.S3.SecretKey, "AWS_SECRET_ACCESS_KEY")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
