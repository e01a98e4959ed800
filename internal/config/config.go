package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appDirName = "ioukeeper"
	envPrefix  = "IOU"

	DefaultBaseURL      = "http://localhost:8080"
	DefaultGoogleClient = "260492928179-bfugkb95ptjvit0hg8ooul8quppar8i5.apps.googleusercontent.com"
	DefaultListenAddr   = "127.0.0.1:8765"
	DefaultTimeout      = 15 * time.Second
	DefaultStaleTTL     = 5 * time.Minute
	DefaultPollInterval = 30 * time.Second
	DefaultLogLevel     = "info"
	defaultConfigName   = "config"
	defaultConfigType   = "yaml"
	defaultDBFileName   = "iou.db"
	defaultLogFileName  = "iou.log"
)

// Config holds all configuration for the application.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Google  GoogleConfig  `mapstructure:"google"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Sync    SyncConfig    `mapstructure:"sync"`
}

// APIConfig points at the bill-tracking backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GoogleConfig holds the OAuth2 client used for sign-in.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	ListenAddr   string `mapstructure:"listen_addr"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

type SyncConfig struct {
	StaleTTL     time.Duration `mapstructure:"stale_ttl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// userConfigDir is swappable in tests.
var userConfigDir = os.UserConfigDir

// Dir returns the per-user directory holding the config file, database and log.
func Dir() (string, error) {
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// in the working directory and IOU_* environment variables, in increasing
// order of precedence. An empty configPath looks for config.yaml in Dir().
func Load(configPath string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("google.client_id", DefaultGoogleClient)
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.listen_addr", DefaultListenAddr)
	v.SetDefault("storage.path", filepath.Join(dir, defaultDBFileName))
	v.SetDefault("log.path", filepath.Join(dir, defaultLogFileName))
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("sync.stale_ttl", DefaultStaleTTL)
	v.SetDefault("sync.poll_interval", DefaultPollInterval)
}

func (c *Config) validate() error {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = DefaultPollInterval
	}
	if c.Sync.StaleTTL <= 0 {
		c.Sync.StaleTTL = DefaultStaleTTL
	}
	return nil
}
