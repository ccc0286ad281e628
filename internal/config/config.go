// Package config resolves the runtime configuration from defaults, an
// optional YAML file, PEERCHAT_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omochice/toy-peer-chat/internal/transport"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

const (
	DefaultAddress = "127.0.0.1"
	DefaultName    = "Unknown"
	envPrefix      = "PEERCHAT_"
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// File receives the log. Empty discards logs, "-" means stderr.
	File string `yaml:"file"`
}

// Config is the resolved configuration of one chat process.
type Config struct {
	Address     string        `yaml:"address"`
	Port        int           `yaml:"port"`
	Server      bool          `yaml:"server"`
	Name        string        `yaml:"name"`
	Transport   string        `yaml:"transport"`
	Logging     LoggingConfig `yaml:"logging"`
	MetricsAddr string        `yaml:"metrics_addr"`
	TracePath   string        `yaml:"trace_path"`
	Notify      bool          `yaml:"notify"`
}

// Default returns the configuration used when nothing else is given.
func Default(getenv func(string) string) Config {
	return Config{
		Address:   DefaultAddress,
		Name:      firstNonEmpty(getenv("USER"), DefaultName),
		Transport: string(transport.KindTCP),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load parses args (without the program name) and returns the validated
// configuration. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	var (
		configPath string
		flagCfg    Config
	)

	fs := flag.NewFlagSet("peerchat", flag.ContinueOnError)
	fs.StringVar(&flagCfg.Address, "address", DefaultAddress, "Address to connect to")
	fs.StringVar(&flagCfg.Address, "a", DefaultAddress, "Address to connect to (shorthand)")
	fs.IntVar(&flagCfg.Port, "port", 0, "Port to listen on or connect to (required)")
	fs.IntVar(&flagCfg.Port, "p", 0, "Port (shorthand)")
	fs.BoolVar(&flagCfg.Server, "server", false, "Run as server")
	fs.BoolVar(&flagCfg.Server, "s", false, "Run as server (shorthand)")
	fs.StringVar(&flagCfg.Name, "name", "", "Name to use")
	fs.StringVar(&flagCfg.Name, "n", "", "Name to use (shorthand)")
	fs.StringVar(&flagCfg.Transport, "transport", "tcp", "Transport: tcp, ws, or auto (server only)")
	fs.StringVar(&flagCfg.Logging.Level, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&flagCfg.Logging.File, "log-file", "", "Write logs to this file (\"-\" for stderr)")
	fs.StringVar(&flagCfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&flagCfg.TracePath, "trace", "", "Record every frame to this trace file")
	fs.BoolVar(&flagCfg.Notify, "notify", false, "Raise desktop notifications for incoming messages")
	fs.StringVar(&configPath, "config", "", "YAML configuration file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default(getenv)
	if path := firstNonEmpty(configPath, getenv(envPrefix+"CONFIG")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "address", "a":
			cfg.Address = flagCfg.Address
		case "port", "p":
			cfg.Port = flagCfg.Port
		case "server", "s":
			cfg.Server = flagCfg.Server
		case "name", "n":
			cfg.Name = flagCfg.Name
		case "transport":
			cfg.Transport = flagCfg.Transport
		case "log-level":
			cfg.Logging.Level = flagCfg.Logging.Level
		case "log-file":
			cfg.Logging.File = flagCfg.Logging.File
		case "metrics-addr":
			cfg.MetricsAddr = flagCfg.MetricsAddr
		case "trace":
			cfg.TracePath = flagCfg.TracePath
		case "notify":
			cfg.Notify = flagCfg.Notify
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for startup errors.
func (c *Config) Validate() error {
	if c.Port == 0 {
		return errors.New("port is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if len(c.Name) > protocol.MaxNameLen {
		return fmt.Errorf("name is longer than %d bytes", protocol.MaxNameLen)
	}
	kind, err := transport.ParseKind(c.Transport)
	if err != nil {
		return err
	}
	if kind == transport.KindAuto && !c.Server {
		return errors.New("transport auto is only valid with -server")
	}
	if c.Address == "" && !c.Server {
		return errors.New("address is required for the client role")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.Address = firstNonEmpty(getenv(envPrefix+"ADDRESS"), c.Address)
	c.Name = firstNonEmpty(getenv(envPrefix+"NAME"), c.Name)
	c.Transport = firstNonEmpty(getenv(envPrefix+"TRANSPORT"), c.Transport)
	c.Logging.Level = firstNonEmpty(getenv(envPrefix+"LOG_LEVEL"), c.Logging.Level)
	c.Logging.File = firstNonEmpty(getenv(envPrefix+"LOG_FILE"), c.Logging.File)
	c.MetricsAddr = firstNonEmpty(getenv(envPrefix+"METRICS_ADDR"), c.MetricsAddr)

	if raw := getenv(envPrefix + "PORT"); raw != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q: %w", envPrefix, raw, err)
		}
		c.Port = port
	}
	return nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
