// Package config loads and validates the lanwatch configuration. A
// configuration is loaded once at startup and treated as immutable; a
// reload builds a complete new Config and the caller swaps snapshots
// between cycles, never mid-cycle.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"lanwatch/internal/device"
	lanerrors "lanwatch/internal/errors"
	"lanwatch/internal/logging"
)

// Config represents the complete lanwatch configuration.
type Config struct {
	// Monitor loop configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Scanner configuration
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Device identity and notification policy
	Devices DevicesConfig `yaml:"devices" json:"devices"`

	// Bark push notification transport
	Bark BarkConfig `yaml:"bark" json:"bark"`

	// Optional event history database
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Optional status/metrics HTTP server
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// MonitorConfig holds settings for the scan-and-diff loop.
type MonitorConfig struct {
	// Interval between scan cycles. The next cycle is scheduled only
	// after the previous one completes.
	Interval time.Duration `yaml:"interval" json:"interval" validate:"required,gt=0"`

	// Schedule is an optional cron expression that replaces the
	// interval ticker. Overlapping fires are skipped.
	Schedule string `yaml:"schedule" json:"schedule"`

	// MissThreshold is the number of consecutive cycles a device must
	// be absent from scan results before a departure is reported.
	MissThreshold int `yaml:"miss_threshold" json:"miss_threshold" validate:"gte=1"`

	// Retention bounds how long absent devices are remembered.
	// Zero disables pruning.
	Retention time.Duration `yaml:"retention" json:"retention" validate:"gte=0"`

	// InitialReport sends a summary notification listing all online
	// devices after the first cycle.
	InitialReport bool `yaml:"initial_report" json:"initial_report"`

	// ShutdownTimeout bounds how long an in-flight cycle may run
	// after a stop signal.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// ResolveHostnames enables reverse-DNS hostname hints for devices
	// without a configured display name.
	ResolveHostnames bool `yaml:"resolve_hostnames" json:"resolve_hostnames"`
}

// ScanConfig holds scanner strategy settings.
type ScanConfig struct {
	// Network interface to scan on.
	Interface string `yaml:"interface" json:"interface" validate:"required"`

	// Subnets to sweep with the active strategies.
	Subnets []string `yaml:"subnets" json:"subnets" validate:"dive,cidr"`

	// Strategies lists enabled strategies in preference order.
	// Known names: arp-scan, nmap, arp-table, snmp.
	Strategies []string `yaml:"strategies" json:"strategies" validate:"min=1"`

	// Timeout for a single strategy attempt.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// SNMP configures the optional router ARP-table strategy.
	SNMP SNMPConfig `yaml:"snmp" json:"snmp"`
}

// SNMPConfig holds settings for reading a router's ARP table over SNMP.
type SNMPConfig struct {
	Target    string `yaml:"target" json:"target"`
	Port      uint16 `yaml:"port" json:"port"`
	Community string `yaml:"community" json:"community"`
}

// DevicesConfig holds device identity mappings and notification policy.
// Keys are MAC addresses in any accepted format; they are canonicalized
// when the registry snapshot is built.
type DevicesConfig struct {
	// Mapping assigns display names to MAC addresses.
	Mapping map[string]string `yaml:"mapping" json:"mapping"`

	// Ignore lists devices that never generate events or records.
	Ignore []string `yaml:"ignore" json:"ignore"`

	// Levels assigns per-device notification levels
	// (normal, silent, vibrate, timeSensitive).
	Levels map[string]string `yaml:"notification_levels" json:"notification_levels"`
}

// BarkConfig holds Bark push notification transport settings.
type BarkConfig struct {
	// Key is the Bark device key. Empty disables notifications.
	Key string `yaml:"key" json:"key"`

	// BaseURL of the Bark server.
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`

	// Timeout for a single delivery attempt.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// QueueSize bounds the outbound notification queue. Notifications
	// beyond the bound are dropped, never blocking the scan loop.
	QueueSize int `yaml:"queue_size" json:"queue_size" validate:"gte=1"`
}

// DatabaseConfig holds the optional sqlite event history settings.
type DatabaseConfig struct {
	// Path to the sqlite database file. Empty disables the store.
	Path string `yaml:"path" json:"path"`
}

// APIConfig holds status server settings. The server is disabled by
// default: lanwatch is a polling client and opens no listener unless
// explicitly asked to.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Port       int    `yaml:"port" json:"port" validate:"gte=0,lte=65535"`
}

// Default configuration values.
const (
	defaultInterval        = 60 * time.Second
	defaultMissThreshold   = 2
	defaultRetention       = 7 * 24 * time.Hour
	defaultShutdownTimeout = 30 * time.Second
	defaultScanTimeout     = 30 * time.Second
	defaultBarkBaseURL     = "https://api.day.app"
	defaultBarkTimeout     = 10 * time.Second
	defaultQueueSize       = 64
	defaultSNMPPort        = 161
	defaultAPIPort         = 8870
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Interval:        defaultInterval,
			MissThreshold:   defaultMissThreshold,
			Retention:       defaultRetention,
			InitialReport:   false,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Scan: ScanConfig{
			Interface:  "eth0",
			Subnets:    []string{"192.168.1.0/24"},
			Strategies: []string{"arp-scan", "nmap", "arp-table"},
			Timeout:    defaultScanTimeout,
			SNMP: SNMPConfig{
				Port:      defaultSNMPPort,
				Community: "public",
			},
		},
		Devices: DevicesConfig{
			Mapping: map[string]string{},
			Ignore:  []string{},
			Levels:  map[string]string{},
		},
		Bark: BarkConfig{
			BaseURL:   defaultBarkBaseURL,
			Timeout:   defaultBarkTimeout,
			QueueSize: defaultQueueSize,
		},
		API: APIConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1",
			Port:       defaultAPIPort,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, merged over defaults.
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil // Return defaults if no config file
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lanerrors.WrapConfigError(lanerrors.CodeConfiguration,
			"failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, lanerrors.WrapConfigError(lanerrors.CodeConfiguration,
			"failed to parse YAML config", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration. Structural constraints are
// checked through validator tags; MAC addresses and notification levels
// need parsing and are checked explicitly.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return lanerrors.ErrConfigInvalid(first.Namespace(), first.Value())
		}
		return lanerrors.WrapConfigError(lanerrors.CodeValidation, "configuration invalid", err)
	}

	if err := c.validateStrategies(); err != nil {
		return err
	}
	return c.Devices.Validate()
}

// KnownStrategies lists the scanner strategy names accepted in
// scan.strategies.
var KnownStrategies = []string{"arp-scan", "nmap", "arp-table", "snmp"}

func (c *Config) validateStrategies() error {
	for _, name := range c.Scan.Strategies {
		known := false
		for _, k := range KnownStrategies {
			if name == k {
				known = true
				break
			}
		}
		if !known {
			return lanerrors.ErrConfigInvalid("scan.strategies", name)
		}
		if name == "snmp" && c.Scan.SNMP.Target == "" {
			return lanerrors.ErrConfigMissing("scan.snmp.target")
		}
	}
	return nil
}

// Validate checks that all configured MAC addresses parse and all
// notification levels are known.
func (d *DevicesConfig) Validate() error {
	for mac := range d.Mapping {
		if _, err := device.ParseMAC(mac); err != nil {
			return lanerrors.ErrConfigInvalid("devices.mapping", mac)
		}
	}
	for _, mac := range d.Ignore {
		if _, err := device.ParseMAC(mac); err != nil {
			return lanerrors.ErrConfigInvalid("devices.ignore", mac)
		}
	}
	for mac, level := range d.Levels {
		if _, err := device.ParseMAC(mac); err != nil {
			return lanerrors.ErrConfigInvalid("devices.notification_levels", mac)
		}
		if _, err := device.ParseLevel(level); err != nil {
			return lanerrors.ErrConfigInvalid("devices.notification_levels", level)
		}
	}
	return nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NotificationsEnabled reports whether a Bark key is configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Bark.Key != ""
}

// StoreEnabled reports whether the event history database is configured.
func (c *Config) StoreEnabled() bool {
	return c.Database.Path != ""
}

// APIAddress returns the full status server address.
func (c *Config) APIAddress() string {
	return c.API.Address()
}

// Address returns the listen address in host:port form.
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.ListenAddr, c.Port)
}
