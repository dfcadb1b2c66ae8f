package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config represents the complete configuration for the command engine
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Tables  TablesConfig  `yaml:"tables"`
	Timing  TimingConfig  `yaml:"timing"`
	Mode    string        `yaml:"mode"`
}

// NetworkConfig holds network-related settings
type NetworkConfig struct {
	HTTP  HTTPConfig  `yaml:"http"`
	Local LocalConfig `yaml:"local"`
}

// HTTPConfig holds the cloud channel HTTP server settings
type HTTPConfig struct {
	Port         int    `yaml:"port"`
	Path         string `yaml:"path"`
	ServerHeader string `yaml:"serverHeader"`
}

// LocalConfig holds the local channel TCP server settings
type LocalConfig struct {
	Port           int      `yaml:"port"`
	AllowedCIDRs   []string `yaml:"allowedCidrs"`
	MaxConnections int      `yaml:"maxConnections"`
	IdleTimeoutSec int      `yaml:"idleTimeoutSec"`
	Advertise      bool     `yaml:"advertise"`
	InstanceName   string   `yaml:"instanceName"`

	// AdvertiseInterface limits mDNS to one interface; empty means all
	AdvertiseInterface string `yaml:"advertiseInterface"`
	AdvertiseTTLSec    int    `yaml:"advertiseTtlSec"`
}

// AuthConfig holds bearer token settings for the cloud channel
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretKey string `yaml:"secretKey"`
	Issuer    string `yaml:"issuer"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// TablesConfig holds the static lookup tables used for dispatch
type TablesConfig struct {
	Devices    []DeviceEntry    `yaml:"devices"`
	Keywords   []KeywordEntry   `yaml:"keywords"`
	Directions []DirectionEntry `yaml:"directions"`
	Commands   []CommandEntry   `yaml:"commands"`
	InitialPin string           `yaml:"initialPin"`
}

// DeviceEntry maps a device name to its kernel (pin) name
type DeviceEntry struct {
	Name   string `yaml:"name"`
	Kernel string `yaml:"kernel"`
}

// KeywordEntry maps a cloud keyword to a pin state
type KeywordEntry struct {
	Name  string `yaml:"name"`
	State string `yaml:"state"`
}

// DirectionEntry maps a direction word to its direction code
type DirectionEntry struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// CommandEntry maps a local command word to a motion state
type CommandEntry struct {
	Name  string `yaml:"name"`
	State string `yaml:"state"`
}

// TimingConfig holds all timing-related settings
type TimingConfig struct {
	Commands CommandsConfig `yaml:"commands"`
	Queue    QueueConfig    `yaml:"queue"`
}

// CommandsConfig holds command timeout settings
type CommandsConfig struct {
	TimeoutSec int `yaml:"timeoutSec"`
}

// QueueConfig holds device command queue settings
type QueueConfig struct {
	Size   int `yaml:"size"`
	WaitMs int `yaml:"waitMs"`
}

// Load loads configuration from file and environment variables.
// path may be empty, in which case COREENGINE_CONFIG is consulted.
func Load(path string) (*Config, error) {
	// Load default configuration
	cfg := getDefaultConfig()

	// Load from default config file
	if err := loadFromFile(cfg, "config/default.yaml"); err != nil {
		// If default config doesn't exist, continue with defaults
		log.Printf("Warning: Could not load default config: %v", err)
	}

	if path == "" {
		path = os.Getenv("COREENGINE_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env: %v", err)
	}

	// Override with environment variables
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return getDefaultConfig()
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			HTTP: HTTPConfig{
				Port:         8080,
				Path:         "/api/cloud",
				ServerHeader: "",
			},
			Local: LocalConfig{
				Port:               50000,
				AllowedCIDRs:       []string{"127.0.0.0/8", "192.168.0.0/16"},
				MaxConnections:     10,
				IdleTimeoutSec:     30,
				Advertise:          false,
				InstanceName:       "coreengine",
				AdvertiseInterface: "",
				AdvertiseTTLSec:    120,
			},
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Tables: TablesConfig{
			Devices: []DeviceEntry{
				{Name: "light", Kernel: "D1"},
				{Name: "fan", Kernel: "D2"},
				{Name: "pump", Kernel: "D3"},
				{Name: "heater", Kernel: "D4"},
				{Name: "door", Kernel: "D5"},
			},
			Keywords: []KeywordEntry{
				{Name: "on", State: "HIGH"},
				{Name: "off", State: "LOW"},
				{Name: "enable", State: "HIGH"},
				{Name: "disable", State: "LOW"},
			},
			Directions: []DirectionEntry{
				{Name: "forward", Value: "F"},
				{Name: "backward", Value: "B"},
				{Name: "left", Value: "L"},
				{Name: "right", Value: "R"},
			},
			Commands: []CommandEntry{
				{Name: "go", State: "RUN"},
				{Name: "move", State: "RUN"},
				{Name: "turn", State: "TURN"},
				{Name: "stop", State: "HALT"},
				{Name: "brake", State: "HALT"},
			},
			InitialPin: "LOW",
		},
		Timing: TimingConfig{
			Commands: CommandsConfig{TimeoutSec: 5},
			Queue: QueueConfig{
				Size:   100,
				WaitMs: 1000,
			},
		},
		Mode: "normal",
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if mode := os.Getenv("COREENGINE_MODE"); mode != "" {
		cfg.Mode = mode
	}

	if port := os.Getenv("COREENGINE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Network.HTTP.Port = p
		}
	}

	if port := os.Getenv("COREENGINE_LOCAL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Network.Local.Port = p
		}
	}

	if secret := os.Getenv("COREENGINE_AUTH_SECRET"); secret != "" {
		cfg.Auth.SecretKey = secret
		cfg.Auth.Enabled = true
	}

	if iface := os.Getenv("COREENGINE_ADVERTISE_INTERFACE"); iface != "" {
		cfg.Network.Local.AdvertiseInterface = iface
	}

	if file := os.Getenv("COREENGINE_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	// Validate mode
	validModes := []string{"normal", "offline"}
	if !contains(validModes, cfg.Mode) {
		return fmt.Errorf("invalid mode %s, must be one of: %v", cfg.Mode, validModes)
	}

	if cfg.Network.HTTP.Port < 0 || cfg.Network.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port %d", cfg.Network.HTTP.Port)
	}
	if cfg.Network.Local.Port < 0 || cfg.Network.Local.Port > 65535 {
		return fmt.Errorf("invalid local port %d", cfg.Network.Local.Port)
	}
	if !strings.HasPrefix(cfg.Network.HTTP.Path, "/") {
		return fmt.Errorf("HTTP path %q must start with /", cfg.Network.HTTP.Path)
	}

	for _, cidr := range cfg.Network.Local.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid allowed CIDR %q: %w", cidr, err)
		}
	}

	if cfg.Network.Local.AdvertiseTTLSec < 0 {
		return fmt.Errorf("advertise TTL must not be negative, got %d", cfg.Network.Local.AdvertiseTTLSec)
	}

	if cfg.Auth.Enabled && cfg.Auth.SecretKey == "" {
		return fmt.Errorf("auth is enabled but no secret key is configured")
	}

	if cfg.Timing.Commands.TimeoutSec <= 0 || cfg.Timing.Commands.TimeoutSec > 60 {
		return fmt.Errorf("command timeout %d seconds is outside reasonable range [1, 60]", cfg.Timing.Commands.TimeoutSec)
	}
	if cfg.Timing.Queue.Size <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", cfg.Timing.Queue.Size)
	}
	if cfg.Timing.Queue.WaitMs <= 0 {
		return fmt.Errorf("queue wait must be positive, got %d", cfg.Timing.Queue.WaitMs)
	}

	return validateTables(&cfg.Tables)
}

// ConsoleBuiltins are the words the local console handles itself. A local
// table entry with one of these names could never be typed at the console.
var ConsoleBuiltins = []string{"help", "show", "reset", "status", "exit", "quit", "q"}

// validateTables checks every table for empty or duplicate entries. Names are
// unique per channel: devices and keywords share the cloud grammar, directions
// and commands share the local one.
func validateTables(t *TablesConfig) error {
	if len(t.Devices) == 0 || len(t.Keywords) == 0 {
		return fmt.Errorf("at least one device and one keyword must be configured")
	}
	if len(t.Commands) == 0 {
		return fmt.Errorf("at least one local command must be configured")
	}

	seen := make(map[string]string)
	check := func(channel, table, name, value string) error {
		normalized := tableKey(name)
		if normalized == "" || strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s entry %q has an empty name or value", table, name)
		}
		key := channel + "/" + normalized
		if prev, ok := seen[key]; ok {
			if prev == table {
				return fmt.Errorf("duplicate %s entry %q", table, name)
			}
			return fmt.Errorf("%s entry %q collides with %s entry of the same name", table, name, prev)
		}
		if channel == "local" && contains(ConsoleBuiltins, normalized) {
			return fmt.Errorf("%s entry %q is reserved by the console", table, name)
		}
		seen[key] = table
		return nil
	}

	for _, d := range t.Devices {
		if err := check("cloud", "device", d.Name, d.Kernel); err != nil {
			return err
		}
	}
	for _, k := range t.Keywords {
		if err := check("cloud", "keyword", k.Name, k.State); err != nil {
			return err
		}
	}
	initialKnown := false
	for _, k := range t.Keywords {
		if k.State == t.InitialPin {
			initialKnown = true
		}
	}
	if !initialKnown {
		return fmt.Errorf("initial pin state %q is not produced by any keyword", t.InitialPin)
	}

	for _, d := range t.Directions {
		if err := check("local", "direction", d.Name, d.Value); err != nil {
			return err
		}
	}
	for _, c := range t.Commands {
		if err := check("local", "command", c.Name, c.State); err != nil {
			return err
		}
	}
	return nil
}

// tableKey folds a table name the way the command tokenizer sees it
func tableKey(name string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	}), " ")
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
