package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for coursesync.
type Config struct {
	BaseDir       string           `toml:"base_dir"`
	MirrorDir     string           `toml:"mirror_dir"`
	LogDir        string           `toml:"log_dir"`
	Course        string           `toml:"course"`
	Subscriptions []string         `toml:"subscriptions"` // subject IDs; empty means every unlocked subject
	Source        SourceConfig     `toml:"source"`
	Network       NetworkConfig    `toml:"network"`
	Vaults        []VaultConfig    `toml:"vaults"`
	Encryption    EncryptionConfig `toml:"encryption"`
	Database      DatabaseConfig   `toml:"database"`
	Filesystem    FilesystemConfig `toml:"filesystem"`
}

// SourceConfig locates the remote course tree.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SourceConfig struct {
	Type string `toml:"type"`           // "http" or "file"
	URL  string `toml:"url,omitempty"`  // only used for type=http
	Path string `toml:"path,omitempty"` // only used for type=file
}

// NetworkConfig tunes transfers.
type NetworkConfig struct {
	MaxConcurrentSubjects int    `toml:"max_concurrent_subjects"`
	RateLimit             int64  `toml:"rate_limit"` // bytes per second, 0 = unlimited
	Retries               int    `toml:"retries"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // 0 = no deadline
	UserAgent             string `toml:"user_agent"`
}

// RequestTimeout returns the per-request deadline, or 0 for none.
func (n NetworkConfig) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

// EncryptionConfig holds paths to the age key pair used for archived snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// VaultConfig represents configuration for a snapshot archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint points at an S3-compatible service; path-style addressing is used when set.
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the snapshot store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a new Config with the provided values and defaults for
// everything else.
func NewConfig(baseDir, mirrorDir, course string) *Config {
	return &Config{
		BaseDir:   baseDir,
		MirrorDir: mirrorDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Course:    course,
		Source:    SourceConfig{Type: "http"},
		Network: NetworkConfig{
			MaxConcurrentSubjects: 4,
			Retries:               2,
			UserAgent:             "coursesync",
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "coursesync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "coursesync.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
	}
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.MirrorDir == "" {
		errs = append(errs, errors.New("mirror_dir is required"))
	}
	if c.Course == "" {
		errs = append(errs, errors.New("course is required"))
	}
	switch c.Source.Type {
	case "http":
		if c.Source.URL == "" {
			errs = append(errs, errors.New("source.url is required for http sources"))
		}
	case "file":
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for file sources"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source type: %q", c.Source.Type))
	}
	if c.Network.MaxConcurrentSubjects < 0 || c.Network.Retries < 0 || c.Network.RateLimit < 0 {
		errs = append(errs, errors.New("network settings must not be negative"))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
// It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
