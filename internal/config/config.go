package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed driver names.
const (
	DriverNATS   = "nats"
	DriverBinlog = "binlog"
)

// Config is the service configuration, loaded from a single YAML file.
type Config struct {
	Feed          FeedConfig     `yaml:"feed"`
	NATS          NATSConfig     `yaml:"nats"`
	MySQL         MySQLConfig    `yaml:"mysql"`
	Realtime      RealtimeConfig `yaml:"realtime"`
	Notifications NotifyConfig   `yaml:"notifications"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// FeedConfig selects and tunes the change feed transport.
type FeedConfig struct {
	Driver       string `yaml:"driver"`        // nats or binlog
	FilterScript string `yaml:"filter_script"` // optional JS event filter
}

// NATSConfig covers both the change feed subjects and the alert sink.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	AlertSubject  string        `yaml:"alert_subject"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// MySQLConfig configures the binlog feed driver.
type MySQLConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	ServerID     uint32 `yaml:"server_id"`
	Flavor       string `yaml:"flavor"` // mysql, mariadb
	Database     string `yaml:"database"`
	PositionFile string `yaml:"position_file"`
}

// RealtimeConfig tunes the classification pipeline.
type RealtimeConfig struct {
	Table           string        `yaml:"table"`
	DedupCap        int           `yaml:"dedup_cap"`
	RefreshDebounce time.Duration `yaml:"refresh_debounce"`
}

// NotifyConfig tunes alert dispatch.
type NotifyConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the config file, filling in defaults afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if config.Feed.Driver == "" {
		config.Feed.Driver = DriverNATS
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "changes"
	}
	if config.NATS.ReconnectWait == 0 {
		config.NATS.ReconnectWait = 2 * time.Second
	}
	if config.MySQL.Flavor == "" {
		config.MySQL.Flavor = "mysql"
	}
	if config.Realtime.Table == "" {
		config.Realtime.Table = "requests"
	}
	if config.Realtime.DedupCap == 0 {
		config.Realtime.DedupCap = 1000
	}
	if config.Realtime.RefreshDebounce == 0 {
		config.Realtime.RefreshDebounce = 300 * time.Millisecond
	}
	if config.Notifications.Cooldown == 0 {
		config.Notifications.Cooldown = 10 * time.Second
	}

	switch config.Feed.Driver {
	case DriverNATS, DriverBinlog:
	default:
		return nil, fmt.Errorf("unknown feed driver %q", config.Feed.Driver)
	}

	return &config, nil
}
