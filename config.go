package pulse

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/Tap30/pulse-go/channel"
)

// Platform selects the backend adapter.
type Platform string

const (
	PlatformAuto    Platform = "auto"
	PlatformNative  Platform = "native"
	PlatformBrowser Platform = "browser"
	PlatformNoop    Platform = "noop"
)

// DefaultChannelName is the channel the facade and backend share.
const DefaultChannelName = "pulse/analytics"

// Collaborators injected by the host. They have no file representation.
type Collaborators struct {
	// Native builds the platform SDK on native targets.
	Native NativeFactory
	// Script runs calls in the browser page on browser targets.
	Script ScriptHost
	// Backend replaces platform selection with a caller supplied adapter,
	// such as adapters.RecordingAdapter in tests.
	Backend Adapter
	// Messenger carries frames to a backend hosted elsewhere. When set no
	// local adapter is bound.
	Messenger Messenger
	// Logger receives diagnostics. Defaults to a zap production logger at
	// LogLevel.
	Logger LoggerAdapter
}

// ClientConfig configures a Client. CompressThreshold is the frame size at
// which snappy compression starts: zero selects the default and a negative
// value disables compression.
type ClientConfig struct {
	Platform              Platform       `json:"platform" yaml:"platform"`
	ChannelName           string         `json:"channel_name" yaml:"channel_name"`
	OptOutTrackingDefault bool           `json:"opt_out_tracking_default" yaml:"opt_out_tracking_default"`
	TrackAutomaticEvents  bool           `json:"track_automatic_events" yaml:"track_automatic_events"`
	ServerURL             string         `json:"server_url" yaml:"server_url"`
	LogLevel              LogLevel       `json:"log_level" yaml:"log_level"`
	FlushInterval         time.Duration  `json:"flush_interval" yaml:"flush_interval"`
	CompressThreshold     int            `json:"compress_threshold" yaml:"compress_threshold"`
	SuperProperties       map[string]any `json:"super_properties" yaml:"super_properties"`

	Adapters Collaborators `json:"-" yaml:"-"`
}

// DefaultConfig returns the configuration NewClient fills missing fields
// from.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Platform:          PlatformAuto,
		ChannelName:       DefaultChannelName,
		LogLevel:          LogLevelWarn,
		CompressThreshold: channel.DefaultCompressThreshold,
	}
}

// Resolve fills zero fields with defaults.
func (c *ClientConfig) Resolve() {
	d := DefaultConfig()
	if c.Platform == "" {
		c.Platform = d.Platform
	}
	if c.ChannelName == "" {
		c.ChannelName = d.ChannelName
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.CompressThreshold == 0 {
		c.CompressThreshold = d.CompressThreshold
	}
}

// Validate reports the first invalid setting.
func (c *ClientConfig) Validate() error {
	switch c.Platform {
	case "", PlatformAuto, PlatformNative, PlatformBrowser, PlatformNoop:
	default:
		return fmt.Errorf("invalid platform: %s (must be auto, native, browser, or noop)", c.Platform)
	}

	if c.LogLevel != "" && !c.LogLevel.Valid() {
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}

	if c.FlushInterval < 0 {
		return fmt.Errorf("flush_interval must not be negative, got %s", c.FlushInterval)
	}

	if c.Platform == PlatformNative && c.Adapters.Native == nil && c.Adapters.Backend == nil && c.Adapters.Messenger == nil {
		return fmt.Errorf("platform native requires a native sdk factory")
	}

	if c.Platform == PlatformBrowser && c.Adapters.Script == nil && c.Adapters.Backend == nil && c.Adapters.Messenger == nil {
		return fmt.Errorf("platform browser requires a script host")
	}

	return nil
}

// LoadConfig reads a YAML or JSON file into a configuration based on
// DefaultConfig.
func LoadConfig(path string) (ClientConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg with PULSE_* environment variables.
func LoadFromEnv(cfg *ClientConfig) {
	if v := os.Getenv("PULSE_PLATFORM"); v != "" {
		cfg.Platform = Platform(v)
	}
	if v := os.Getenv("PULSE_CHANNEL_NAME"); v != "" {
		cfg.ChannelName = v
	}
	if v := os.Getenv("PULSE_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = LogLevel(strings.ToUpper(v))
	}
	if v := os.Getenv("PULSE_OPT_OUT_TRACKING_DEFAULT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.OptOutTrackingDefault = b
		}
	}
	if v := os.Getenv("PULSE_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FlushInterval = d
		}
	}
}

// DetectPlatform picks the backend for the running target.
func DetectPlatform() Platform {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) Platform {
	switch goos {
	case "android", "ios":
		return PlatformNative
	case "js":
		return PlatformBrowser
	}
	return PlatformNoop
}
