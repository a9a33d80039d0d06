package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"bfile/internal/models"
	"bfile/internal/transfer"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7434"
	DefaultDBFileName  = ".bfile.db"
	DefaultBlobDirName = ".bfile-blobs"
	DefaultLogLevel    = "info"
	ConfigFileName     = ".bfile.toml"

	DefaultMaxUploadBytes     int64 = 2 * 1024 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024

	configDirEnvKey          = "BFILE_CONFIG_DIR"
	trustProjectConfigEnvKey = "BFILE_TRUST_PROJECT_CONFIG"

	apiURLEnvKey  = "BFILE_API_URL"
	dbPathEnvKey  = "BFILE_DB"
	accountEnvKey = "BFILE_ACCOUNT"
	blobsEnvKey   = "BFILE_BLOBS"
)

// BlobConfig defines runtime configuration for blob storage.
type BlobConfig struct {
	Backend            string `toml:"backend"`
	Root               string `toml:"root"`
	MinFreeBytes       int64  `toml:"min_free_bytes"`
	MaxUploadBytes     int64  `toml:"max_upload_bytes"`
	MultipartMaxMemory int64  `toml:"multipart_max_memory"`
	// GatewayURL prefixes stored blob addresses. Empty means APIURL.
	GatewayURL string `toml:"gateway_url"`
}

// Config defines runtime configuration for bfile.
type Config struct {
	APIURL                   string     `toml:"api_url"`
	DBPath                   string     `toml:"db_path"`
	Account                  string     `toml:"account"`
	LogLevel                 string     `toml:"log_level"`
	ChunkSize                int        `toml:"chunk_size"`
	Blobs                    BlobConfig `toml:"blobs"`
	TrustedProjectConfigPath string     `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:    DefaultAPIURL,
		LogLevel:  DefaultLogLevel,
		ChunkSize: transfer.DefaultChunkSize,
		Blobs: BlobConfig{
			Backend:            string(models.BackendLocalCAS),
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
	}
}

// GatewayURL returns the prefix used when building blob addresses.
func (c *Config) GatewayURL() string {
	if gw := strings.TrimSpace(c.Blobs.GatewayURL); gw != "" {
		return strings.TrimRight(gw, "/")
	}
	return strings.TrimRight(c.APIURL, "/")
}

// configKey binds a dotted TOML key to its field. parse validates a value
// given to `bfile config set` and returns what is written to the file.
type configKey struct {
	name  string
	get   func(*Config) string
	parse func(string) (any, error)
}

var configKeys = []configKey{
	{"api_url", func(c *Config) string { return c.APIURL }, parseURL(false)},
	{"db_path", func(c *Config) string { return c.DBPath }, parseString},
	{"account", func(c *Config) string { return c.Account }, parseAccount},
	{"log_level", func(c *Config) string { return c.LogLevel }, parseString},
	{"chunk_size", func(c *Config) string { return strconv.Itoa(c.ChunkSize) }, parseInt(1)},
	{"blobs.backend", func(c *Config) string { return c.Blobs.Backend }, parseBackend},
	{"blobs.root", func(c *Config) string { return c.Blobs.Root }, parseString},
	{"blobs.min_free_bytes", func(c *Config) string { return strconv.FormatInt(c.Blobs.MinFreeBytes, 10) }, parseInt(0)},
	{"blobs.max_upload_bytes", func(c *Config) string { return strconv.FormatInt(c.Blobs.MaxUploadBytes, 10) }, parseInt(1)},
	{"blobs.multipart_max_memory", func(c *Config) string { return strconv.FormatInt(c.Blobs.MultipartMaxMemory, 10) }, parseInt(1)},
	{"blobs.gateway_url", func(c *Config) string { return c.Blobs.GatewayURL }, parseURL(true)},
}

func lookupKey(name string) (configKey, bool) {
	i := slices.IndexFunc(configKeys, func(k configKey) bool { return k.name == name })
	if i < 0 {
		return configKey{}, false
	}
	return configKeys[i], true
}

// AllowedKeys returns the valid config keys in display order.
func AllowedKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	k, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	return k.get(c), nil
}

func parseString(value string) (any, error) { return value, nil }

func parseInt(min int64) func(string) (any, error) {
	return func(value string) (any, error) {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < min {
			if min > 0 {
				return nil, fmt.Errorf("must be a positive integer, got %q", value)
			}
			return nil, fmt.Errorf("must be a non-negative integer, got %q", value)
		}
		return n, nil
	}
}

func parseURL(allowEmpty bool) func(string) (any, error) {
	return func(value string) (any, error) {
		if value == "" && allowEmpty {
			return value, nil
		}
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("must be an http(s) URL, got %q", value)
		}
		return value, nil
	}
}

func parseBackend(value string) (any, error) {
	backend, err := models.ParseBlobBackend(value)
	if err != nil {
		return nil, err
	}
	return string(backend), nil
}

func parseAccount(value string) (any, error) {
	if value == "" {
		return value, nil
	}
	if err := transfer.ValidateAddress("account", value); err != nil {
		return nil, err
	}
	return transfer.NormalizeAddress(value), nil
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ConfigFileName), nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, ConfigFileName), true
}

// SetKey validates value for key and writes it into the TOML file at path,
// keeping any other settings already there.
func SetKey(path, key, value string) error {
	k, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	parsed, err := k.parse(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	doc := map[string]any{}
	if _, err := toml.DecodeFile(path, &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	table := doc
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, exists := table[part]
		if !exists {
			child = map[string]any{}
			table[part] = child
		}
		next, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a table in %s", key, part, path)
		}
		table = next
	}
	table[parts[len(parts)-1]] = parsed

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// loadFile merges path into cfg. A missing file or a directory is skipped
// and reported as not loaded.
func loadFile(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	case info.IsDir():
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

// Load layers configuration: defaults, then the global file (or the
// BFILE_CONFIG_DIR file), then a project file when
// BFILE_TRUST_PROJECT_CONFIG is set, then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path, ok := overrideConfigPath(); ok {
		if _, err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if _, err := loadFile(filepath.Join(home, ConfigFileName), &cfg); err != nil {
				return nil, err
			}
		}
		if trusted, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))); trusted {
			if cwd, err := os.Getwd(); err == nil {
				path := filepath.Join(cwd, ConfigFileName)
				loaded, err := loadFile(path, &cfg)
				if err != nil {
					return nil, err
				}
				if loaded {
					cfg.TrustedProjectConfigPath = path
				}
			}
		}
	}

	for key, field := range map[string]*string{
		apiURLEnvKey:  &cfg.APIURL,
		dbPathEnvKey:  &cfg.DBPath,
		accountEnvKey: &cfg.Account,
		blobsEnvKey:   &cfg.Blobs.Root,
	} {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.Blobs.Root == "" && cfg.DBPath != "" {
		cfg.Blobs.Root = filepath.Join(filepath.Dir(cfg.DBPath), DefaultBlobDirName)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = transfer.DefaultChunkSize
	}
	if c.Blobs.MaxUploadBytes <= 0 {
		c.Blobs.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Blobs.MultipartMaxMemory <= 0 {
		c.Blobs.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	c.Blobs.MinFreeBytes = max(c.Blobs.MinFreeBytes, 0)

	backend, err := models.ParseBlobBackend(c.Blobs.Backend)
	if err != nil {
		return err
	}
	c.Blobs.Backend = string(backend)
	c.Account = transfer.NormalizeAddress(c.Account)
	return nil
}
