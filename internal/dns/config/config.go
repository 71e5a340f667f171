package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log     LoggingConfig `koanf:"log"`
	Server  ServerConfig  `koanf:"server"`
	Records RecordsConfig `koanf:"records"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// LoggingConfig controls log verbosity: "debug", "info", "warn", or "error".
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ServerConfig is where the responder listens.
type ServerConfig struct {
	Address string `koanf:"address" validate:"required,ip_addr"`

	// Port may be 0 to let the OS pick one.
	Port int `koanf:"port" validate:"gte=0,lte=65535"`

	// ControlBuffer is the capacity of the control notification channel.
	ControlBuffer int `koanf:"control_buffer" validate:"gte=1"`
}

// RecordsConfig describes the hostname table.
type RecordsConfig struct {
	File   string `koanf:"file" validate:"required"`
	Suffix string `koanf:"suffix" validate:"required,suffix"`

	// Watch reloads the table when the file changes on disk.
	Watch     bool `koanf:"watch"`
	CacheSize int  `koanf:"cache_size" validate:"gte=0"`

	// StateDB is the bolt file holding the last known good table. Empty disables it.
	StateDB string `koanf:"state_db"`
}

// BreakerConfig tunes the request circuit breaker.
type BreakerConfig struct {
	Threshold uint32        `koanf:"threshold" validate:"gte=1"`
	Cooldown  time.Duration `koanf:"cooldown" validate:"gt=0"`
}

// DEFAULT_APP_CONFIG defines the default configuration: a loopback listener on
// port 53 serving ~/.dot-local-records under ".local".
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Server: ServerConfig{
		Address:       "127.0.0.1",
		Port:          53,
		ControlBuffer: 4,
	},
	Records: RecordsConfig{
		File:      "~/.dot-local-records",
		Suffix:    ".local",
		Watch:     false,
		CacheSize: 256,
	},
	Breaker: BreakerConfig{
		Threshold: 3,
		Cooldown:  10 * time.Second,
	},
}

// sections are the top-level keys whose env names carry a nested key,
// e.g. DNS_RECORDS_STATE_DB is records.state_db.
var sections = map[string]bool{
	"log":     true,
	"server":  true,
	"records": true,
	"breaker": true,
}

// ListenAddr joins the server address and port.
func (c *AppConfig) ListenAddr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// RecordsPath returns the records file with a leading "~/" expanded.
func (c *AppConfig) RecordsPath() (string, error) {
	return expandHome(c.Records.File)
}

// StatePath returns the state db path with a leading "~/" expanded.
func (c *AppConfig) StatePath() (string, error) {
	return expandHome(c.Records.StateDB)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// validSuffix accepts a dotted suffix such as ".local" with at least one
// non-empty label and no whitespace.
func validSuffix(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) < 2 || s[0] != '.' || strings.HasSuffix(s, ".") {
		return false
	}
	if strings.ContainsAny(s, " \t:") {
		return false
	}
	for _, label := range strings.Split(s[1:], ".") {
		if label == "" || len(label) > 63 {
			return false
		}
	}
	return true
}

// validIPAddr accepts a bare IPv4 or IPv6 address without a port.
func validIPAddr(fl validator.FieldLevel) bool {
	_, err := netip.ParseAddr(fl.Field().String())
	return err == nil
}

// envKey maps DNS_SECTION_NAME to section.name and DNS_NAME to name.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
	if head, rest, ok := strings.Cut(key, "_"); ok && sections[head] {
		return head + "." + rest
	}
	return key
}

// envLoader loads environment variables with the prefix "DNS_"
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads a config file, choosing the parser by extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".toml":
		parser = toml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the "suffix" and "ip_addr" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("suffix", validSuffix); err != nil {
		return err
	}
	return v.RegisterValidation("ip_addr", validIPAddr)
}

// Load builds the configuration from defaults, then the optional config file
// at path, then DNS_* environment variables, and validates the result.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
