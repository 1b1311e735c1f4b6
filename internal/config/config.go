package config

import (
  "errors"
  "fmt"
  "os"
  "path/filepath"
  "time"

  "gopkg.in/yaml.v3"
)

type Config struct {
  BenignLogPath    string        `yaml:"benign_log_path"`
  MaliciousLogPath string        `yaml:"malicious_log_path"`
  PollInterval     time.Duration `yaml:"poll_interval"`
  Timezone         string        `yaml:"timezone"`
  ProtocolField    string        `yaml:"protocol_field"`
  SourceField      string        `yaml:"source_field"`

  HTTPBind    string `yaml:"http_bind"`
  MetricsBind string `yaml:"metrics_bind"`
  QueueDepth  int    `yaml:"queue_depth"`
  HistorySize int    `yaml:"history_size"`
  LogLevel    string `yaml:"log_level"`

  NATSURL     string `yaml:"nats_url"`
  NATSSubject string `yaml:"nats_subject"`

  location *time.Location
}

func Load(path string) (*Config, error) {
  data, err := os.ReadFile(path)
  if err != nil {
    return nil, err
  }
  return Parse(data)
}

func Parse(data []byte) (*Config, error) {
  cfg := &Config{}
  if err := yaml.Unmarshal(data, cfg); err != nil {
    return nil, fmt.Errorf("config yaml: %w", err)
  }
  cfg.applyDefaults()
  if err := cfg.validate(); err != nil {
    return nil, err
  }
  return cfg, nil
}

// Default is the configuration used when no config file is given.
func Default() *Config {
  cfg := &Config{}
  cfg.applyDefaults()
  cfg.location = time.Local
  return cfg
}

// Location is the zone used for log timestamps that carry no offset.
func (c *Config) Location() *time.Location {
  if c.location == nil {
    return time.Local
  }
  return c.location
}

func (c *Config) applyDefaults() {
  if c.BenignLogPath == "" {
    c.BenignLogPath = "benign_packets.log"
  }
  if c.MaliciousLogPath == "" {
    c.MaliciousLogPath = "malicious_packets.log"
  }
  if c.PollInterval == 0 {
    c.PollInterval = time.Second
  }
  if c.ProtocolField == "" {
    c.ProtocolField = "Protocol"
  }
  if c.SourceField == "" {
    c.SourceField = "Source IP"
  }
  if c.HTTPBind == "" {
    c.HTTPBind = "127.0.0.1:8088"
  }
  if c.QueueDepth == 0 {
    c.QueueDepth = 16
  }
  if c.HistorySize == 0 {
    c.HistorySize = 60
  }
  if c.LogLevel == "" {
    c.LogLevel = "info"
  }
  if c.NATSSubject == "" {
    c.NATSSubject = "netmon.dashboard"
  }
}

func (c *Config) validate() error {
  if c.PollInterval < 0 {
    return errors.New("poll_interval must be positive")
  }
  if filepath.Clean(c.BenignLogPath) == filepath.Clean(c.MaliciousLogPath) {
    return errors.New("benign_log_path and malicious_log_path must differ")
  }
  if c.QueueDepth < 0 {
    return errors.New("queue_depth must not be negative")
  }
  if c.HistorySize < 0 {
    return errors.New("history_size must not be negative")
  }
  c.location = time.Local
  if c.Timezone != "" {
    loc, err := time.LoadLocation(c.Timezone)
    if err != nil {
      return fmt.Errorf("timezone %q: %w", c.Timezone, err)
    }
    c.location = loc
  }
  return nil
}
