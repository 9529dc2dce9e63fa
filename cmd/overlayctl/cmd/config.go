package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	goOverlay "github.com/MrEthical07/goOverlay"
	"github.com/MrEthical07/goOverlay/password"
)

// cliConfig is the overlayctl YAML file. Engine settings sit at the top level
// next to the CLI's own sections.
type cliConfig struct {
	goOverlay.Config `yaml:",inline"`

	Backend   string          `yaml:"backend"`
	DataDir   string          `yaml:"data_dir"`
	RedisAddr string          `yaml:"redis_addr"`
	LogLevel  string          `yaml:"log_level"`
	Listen    string          `yaml:"listen"`
	Directory directoryConfig `yaml:"directory"`
	Tokens    tokenConfig     `yaml:"tokens"`
	Password  password.Params `yaml:"password"`
}

type directoryConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
	Seed  string `yaml:"seed"`
}

type tokenConfig struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	TTL        time.Duration `yaml:"ttl"`
}

const (
	backendMemory        = "memory"
	backendFile          = "file"
	backendSQLite        = "sqlite"
	backendRedis         = "redis"
	backendRedisEmbedded = "redis-embedded"
)

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Config:    goOverlay.DefaultConfig(),
		Backend:   backendFile,
		DataDir:   defaultDataDir(),
		RedisAddr: "127.0.0.1:6379",
		LogLevel:  "warn",
		Listen:    "127.0.0.1:8085",
		Tokens: tokenConfig{
			Issuer: "overlayctl",
			TTL:    12 * time.Hour,
		},
		Password: password.DefaultParams(),
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "overlayctl")
	}
	return ".overlayctl"
}

// loadCLIConfig reads path on top of the defaults. A missing file is not an
// error when the path was not given explicitly.
func loadCLIConfig(path string, explicit bool) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if path == "" {
		return cfg, cfg.validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, cfg.validate()
		}
		return cliConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *cliConfig) validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	switch c.Backend {
	case backendMemory, backendFile, backendSQLite, backendRedis, backendRedisEmbedded:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if (c.Backend == backendFile || c.Backend == backendSQLite) && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("backend %s needs data_dir", c.Backend)
	}
	if c.Directory.URL != "" && c.Directory.Seed != "" {
		return errors.New("directory url and seed are mutually exclusive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
