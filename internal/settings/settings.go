// Package settings implements C8: loading and resolving the pipeline's
// configuration, including the fd-ceiling negotiation and semaphore
// sizing that proxy_scraper_checker's settings.py performs at startup.
package settings

import (
	"fmt"
	"net/url"
	"os"

	"github.com/proxyharvest/proxyharvest/internal/classifier"
	pherrors "github.com/proxyharvest/proxyharvest/internal/errors"
	"github.com/proxyharvest/proxyharvest/internal/proxy"
	"gopkg.in/yaml.v3"
)

// ProtocolConfig is one of the three per-protocol sections of the input
// configuration (spec §6).
type ProtocolConfig struct {
	Enabled bool     `yaml:"enabled"`
	Sources []string `yaml:"sources"`
}

// OutputConfig configures C7's output modes.
type OutputConfig struct {
	JSON bool   `yaml:"json"`
	TXT  bool   `yaml:"txt"`
	Path string `yaml:"path"`
}

// Config is the raw, YAML-decoded input configuration (spec §6). It is
// loaded and validated before being resolved into an immutable Settings.
type Config struct {
	Timeout           float64        `yaml:"timeout"`
	SourceTimeout      float64       `yaml:"source_timeout"`
	MaxConnections     int           `yaml:"max_connections"`
	SortBySpeed        bool          `yaml:"sort_by_speed"`
	CheckWebsite       string        `yaml:"check_website"`
	EnableGeolocation  bool          `yaml:"enable_geolocation"`
	Output             OutputConfig  `yaml:"output"`
	HTTP               ProtocolConfig `yaml:"http"`
	SOCKS4             ProtocolConfig `yaml:"socks4"`
	SOCKS5             ProtocolConfig `yaml:"socks5"`
	SourceMatchCap     int           `yaml:"source_match_cap"`
	ShuffleSeed        *int64        `yaml:"shuffle_seed"`
}

// LoadConfig reads and decodes a YAML configuration file, following
// ProxyHawk's config.LoadConfig style (missing file -> defaults, not an error).
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: reading %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("settings: parsing %s: %w", path, err)
	}
	return config, nil
}

// DefaultConfig mirrors the original's sensible starting point: https
// httpbin baseline, JSON+TXT output enabled, no hard-coded sources.
func DefaultConfig() *Config {
	return &Config{
		Timeout:       15,
		SourceTimeout: 15,
		CheckWebsite:  "https://httpbin.org/ip",
		Output: OutputConfig{
			JSON: true,
			TXT:  true,
			Path: "out",
		},
		HTTP:   ProtocolConfig{Enabled: true},
		SOCKS4: ProtocolConfig{Enabled: true},
		SOCKS5: ProtocolConfig{Enabled: true},
	}
}

// Settings is the immutable, resolved configuration C5/C6/C7 consume.
// Build does not run C4 (the classifier) itself; it takes C4's result from
// the caller.
type Settings struct {
	CheckWebsite      string
	CheckWebsiteType  classifier.Type
	RealIP            string
	EnableGeolocation bool

	OutputJSON bool
	OutputTXT  bool
	OutputPath string

	MaxConnections int // resolved/clamped capacity; 0 means uncapped
	Timeout        float64
	SourceTimeout  float64

	Sources map[proxy.Protocol][]string

	SortBySpeed    bool
	SourceMatchCap int // 0 means unlimited
	ShuffleSeed    *int64
}

type resourceLogger interface {
	MaxConnectionsClamped(requested, effective int)
}

// Build validates cfg, runs the fd-ceiling negotiation, and assembles an
// immutable Settings. checkWebsiteType/realIP come from C4, which the
// caller runs before calling Build so that enable_geolocation can be
// correctly forced false for an UNKNOWN baseline.
func Build(cfg *Config, checkWebsiteType classifier.Type, realIP string, logger resourceLogger) (*Settings, error) {
	if result := Validate(cfg); !result.Valid {
		return nil, pherrors.NewConfigError("invalid configuration: "+result.Errors[0].Error(), result.Errors[0])
	}

	effective, uncapped := resolveMaxConnections(cfg.MaxConnections, logger)

	sources := map[proxy.Protocol][]string{}
	if cfg.HTTP.Enabled {
		sources[proxy.HTTP] = cfg.HTTP.Sources
	}
	if cfg.SOCKS4.Enabled {
		sources[proxy.SOCKS4] = cfg.SOCKS4.Sources
	}
	if cfg.SOCKS5.Enabled {
		sources[proxy.SOCKS5] = cfg.SOCKS5.Sources
	}

	enableGeo := cfg.EnableGeolocation && checkWebsiteType.SupportsGeolocation() && cfg.Output.JSON

	maxConnections := effective
	if uncapped {
		maxConnections = 0
	}

	return &Settings{
		CheckWebsite:      cfg.CheckWebsite,
		CheckWebsiteType:  checkWebsiteType,
		RealIP:            realIP,
		EnableGeolocation: enableGeo,
		OutputJSON:        cfg.Output.JSON,
		OutputTXT:         cfg.Output.TXT,
		OutputPath:        cfg.Output.Path,
		MaxConnections:    maxConnections,
		Timeout:           cfg.Timeout,
		SourceTimeout:     cfg.SourceTimeout,
		Sources:           sources,
		SortBySpeed:       cfg.SortBySpeed,
		SourceMatchCap:    cfg.SourceMatchCap,
		ShuffleSeed:       cfg.ShuffleSeed,
	}, nil
}

// resolveMaxConnections implements _get_max_connections: 0 means "use the
// OS ceiling"; otherwise clamp to it with a warning.
func resolveMaxConnections(requested int, logger resourceLogger) (effective int, uncapped bool) {
	supported, noCap := supportedMaxConnections(logger)

	if requested == 0 {
		return supported, noCap
	}
	if noCap || requested <= supported {
		return requested, false
	}
	if logger != nil {
		logger.MaxConnectionsClamped(requested, supported)
	}
	return supported, false
}

// ValidationError is a single configuration problem, following
// ProxyHawk's ConfigValidationError shape.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult accumulates every problem found in one pass, the way
// ProxyHawk's ValidateConfig does, instead of failing at the first error.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []string
}

// Validate performs every check spec §4.8 requires.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	addErr := func(field, message string) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: message})
	}

	if cfg.Timeout <= 0 {
		addErr("timeout", "must be positive")
	}
	if cfg.SourceTimeout <= 0 {
		addErr("source_timeout", "must be positive")
	}
	if !cfg.Output.JSON && !cfg.Output.TXT {
		addErr("output", "at least one of json/txt must be enabled")
	}
	if cfg.EnableGeolocation && !cfg.Output.JSON {
		addErr("enable_geolocation", "requires output.json to be enabled")
	}
	if cfg.MaxConnections < 0 {
		addErr("max_connections", "must be non-negative")
	}

	if cfg.CheckWebsite != "" {
		parsed, err := url.Parse(cfg.CheckWebsite)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			addErr("check_website", fmt.Sprintf("invalid URL: %s", cfg.CheckWebsite))
		} else if parsed.Scheme == "http" {
			result.Warnings = append(result.Warnings,
				"check_website uses http; https is recommended for correct checking")
		}
	}

	for name, proto := range map[string]ProtocolConfig{"http": cfg.HTTP, "socks4": cfg.SOCKS4, "socks5": cfg.SOCKS5} {
		if proto.Enabled && len(proto.Sources) == 0 {
			addErr(name+".sources", "enabled protocol must supply a non-empty sources list")
		}
	}

	return result
}
