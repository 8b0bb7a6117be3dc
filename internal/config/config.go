package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env    string       `yaml:"env" env-default:"prod"`
	Source SourceConfig `yaml:"source"`
	HTTP   HTTPConfig   `yaml:"http"`
	Hooks  HooksConfig  `yaml:"hooks"`
	Server ServerConfig `yaml:"server"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Log    LogConfig    `yaml:"log"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type HooksConfig struct {
	Dir     string        `yaml:"dir" env:"HOOKS_DIR" env-default:"hooks"`
	Timeout time.Duration `yaml:"timeout" env-default:"30s"`
}

type ServerConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type MQTTConfig struct {
	Enabled  bool          `yaml:"enabled" env-default:"false"`
	Broker   string        `yaml:"broker" env-default:"tcp://localhost:1883"`
	ClientID string        `yaml:"client_id" env-default:"co2hook"`
	Topic    string        `yaml:"topic" env-default:"sensors/co2"`
	QoS      byte          `yaml:"qos" env-default:"0"`
	Retained bool          `yaml:"retained" env-default:"true"`
	Timeout  time.Duration `yaml:"timeout" env-default:"5s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

// Load reads configPath (YAML or TOML, chosen by extension) and applies
// environment overrides and defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s: %w", configPath, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a Config populated only from defaults and the environment.
// It is used when the source is fully described by command-line flags.
func Defaults() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

// Path picks the config file: the flag value, then CONFIG_PATH, then the
// default location.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "config/config.yaml"
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(Path(configPath))
	if err != nil {
		panic(err.Error())
	}

	return cfg
}
