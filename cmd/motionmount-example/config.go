package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/motionmount/motionmount-go/pkg/motionmount"
)

// Config holds the example configuration. Values come from the flag
// defaults, then the optional YAML file, then flags given explicitly.
type Config struct {
	ConfigFile string `yaml:"-"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Name selects a mount by mDNS instance name instead of Host.
	Name string `yaml:"name"`

	Secret         string        `yaml:"secret"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxPreset      int           `yaml:"max_preset"`

	LogLevel    string `yaml:"log_level"`
	ProtocolLog string `yaml:"protocol_log"`
	Reconnect   bool   `yaml:"reconnect"`
	Interactive bool   `yaml:"interactive"`

	Discover bool `yaml:"-"`
	Simulate bool `yaml:"-"`
}

func newFlagSet(cfg *Config, output io.Writer) *flag.FlagSet {
	defaults := motionmount.DefaultConfig()

	fs := flag.NewFlagSet("motionmount-example", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.ConfigFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&cfg.Host, "host", "", "MotionMount host name or IP address")
	fs.IntVar(&cfg.Port, "port", motionmount.DefaultPort, "MotionMount control port")
	fs.StringVar(&cfg.Name, "name", "", "Find the mount by mDNS instance name")
	fs.StringVar(&cfg.Secret, "secret", "", "Secret for mounts that require authentication")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", defaults.ConnectTimeout, "Connect timeout")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", defaults.RequestTimeout, "Request timeout")
	fs.IntVar(&cfg.MaxPreset, "max-preset", 0, "Highest accepted preset index (0: ask the mount)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.ProtocolLog, "protocol-log", "", "Write protocol events to this file (CBOR)")
	fs.BoolVar(&cfg.Reconnect, "reconnect", false, "Reconnect with backoff after connection loss")
	fs.BoolVar(&cfg.Interactive, "interactive", false, "Start the interactive console instead of the demo")
	fs.BoolVar(&cfg.Discover, "discover", false, "List MotionMounts on the network and exit")
	fs.BoolVar(&cfg.Simulate, "simulate", false, "Run against a built-in simulated mount")
	return fs
}

// parseArgs builds the configuration from command line arguments.
func parseArgs(args []string, output io.Writer) (Config, error) {
	var cfg Config
	fs := newFlagSet(&cfg, output)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ConfigFile != "" {
		if err := loadConfigFile(cfg.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
		// Explicit flags win over the file.
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Discover || c.Simulate {
		return nil
	}
	if c.Host == "" && c.Name == "" {
		return errors.New("one of -host, -name, -discover or -simulate is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}
