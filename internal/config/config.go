// Package config loads the tally configuration file.
//
// The file is YAML or JSON. Every field is optional: ApplyDefaults fills the
// gaps and command-line flags override what the file says.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tally/internal/argilla"
	"tally/internal/schema"
	"tally/internal/store"
	"tally/internal/upload"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultSession   = "default"
	DefaultOutput    = "labeled_data.csv"
	DefaultAddr      = "127.0.0.1:8501"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// APIKeyEnv overrides the destination API key.
const APIKeyEnv = "TALLY_API_KEY"

// Config is the whole configuration file.
type Config struct {
	Session     string            `json:"session" yaml:"session"`
	Dataset     DatasetConfig     `json:"dataset" yaml:"dataset"`
	Question    QuestionConfig    `json:"question" yaml:"question"`
	Guidelines  string            `json:"guidelines,omitempty" yaml:"guidelines,omitempty"`
	Output      string            `json:"output" yaml:"output"`
	Destination DestinationConfig `json:"destination" yaml:"destination"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	Log         LogConfig         `json:"log" yaml:"log"`
	Store       StoreConfig       `json:"store" yaml:"store"`
}

// DatasetConfig names the file to review.
type DatasetConfig struct {
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Format    string `json:"format,omitempty" yaml:"format,omitempty"` // csv, tsv, jsonl; empty = by extension
	TextField string `json:"text_field,omitempty" yaml:"text_field,omitempty"`
}

// QuestionConfig is the question asked of every record.
type QuestionConfig struct {
	Type         string   `json:"type,omitempty" yaml:"type,omitempty"`
	Labels       []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	RatingMin    int      `json:"rating_min,omitempty" yaml:"rating_min,omitempty"`
	RatingMax    int      `json:"rating_max,omitempty" yaml:"rating_max,omitempty"`
	AllowOverlap bool     `json:"allow_overlap,omitempty" yaml:"allow_overlap,omitempty"`
}

// DestinationConfig is the Argilla server annotations are uploaded to.
// The key comes from APIKeyEnv, then APIKey, then APIKeyFile.
type DestinationConfig struct {
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyFile string `json:"api_key_file,omitempty" yaml:"api_key_file,omitempty"`
	Dataset    string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Workspace  string `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Mode       string `json:"mode,omitempty" yaml:"mode,omitempty"` // response or suggestion
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// StoreConfig configures the session journal.
type StoreConfig struct {
	Path     string `json:"path" yaml:"path"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// LoadFromPath reads a config file (YAML or JSON).
// Format is detected by extension (.yaml/.yml, .json) or by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Load(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Load parses config bytes and applies defaults. ext is the file extension
// used as a format hint; empty means detect from content.
func Load(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	default:
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with only defaults set.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Session == "" {
		c.Session = DefaultSession
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Store.Path == "" {
		c.Store.Path = store.DefaultDBPath
	}
	if c.Destination.Mode == "" {
		c.Destination.Mode = string(upload.ModeResponse)
	}
}

// SchemaConfig converts the question section for schema.Build.
func (c *Config) SchemaConfig() (schema.Config, error) {
	out := schema.Config{
		Labels:       c.Question.Labels,
		RatingMin:    c.Question.RatingMin,
		RatingMax:    c.Question.RatingMax,
		AllowOverlap: c.Question.AllowOverlap,
		Guidelines:   c.Guidelines,
	}
	if c.Question.Type != "" {
		t, err := schema.ParseQuestionType(c.Question.Type)
		if err != nil {
			return schema.Config{}, err
		}
		out.Type = t
	}
	return out, nil
}

// UploadDestination resolves the upload destination, reading the API key from
// the environment or key file as needed. A missing key is left empty for
// Destination.Validate to report.
func (c *Config) UploadDestination() (upload.Destination, error) {
	d := upload.Destination{
		URL:       c.Destination.URL,
		APIKey:    c.Destination.APIKey,
		Dataset:   c.Destination.Dataset,
		Workspace: c.Destination.Workspace,
	}
	if env := strings.TrimSpace(os.Getenv(APIKeyEnv)); env != "" {
		d.APIKey = env
		return d, nil
	}
	if d.APIKey == "" && c.Destination.APIKeyFile != "" {
		key, err := ReadAPIKey(c.Destination.APIKeyFile)
		if err != nil {
			return d, err
		}
		d.APIKey = key
	}
	return d, nil
}

// UploadMode parses Destination.Mode.
func (c *Config) UploadMode() (upload.Mode, error) {
	return upload.ParseMode(c.Destination.Mode)
}

// ReadAPIKey reads an API key file.
func ReadAPIKey(path string) (string, error) {
	key, err := argilla.ReadAPIKey(path)
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return key, nil
}

// Save writes the configuration as YAML, replacing path atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
