package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

// Format is the on-disk encoding of a config file.
type Format string

const (
	ConnectorSerial ConnectorType = "serial"
	ConnectorIP     ConnectorType = "ip"

	DefaultSerialBaud   = 9600
	DefaultIPPort       = 2000
	DefaultMaxLineBytes = 4096
	DefaultSettleMS     = 2000

	DefaultTemplateEndpoint = "https://api.apitemplate.io/v1/create"

	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level" toml:"level" yaml:"level"`
	Format    string `json:"format" toml:"format" yaml:"format"`
	LogToFile bool   `json:"log_to_file" toml:"log_to_file" yaml:"log_to_file"`

	// Components maps a component name such as "link" or "device" to its own level.
	Components map[string]string `json:"components,omitempty" toml:"components,omitempty" yaml:"components,omitempty"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector" toml:"connector" yaml:"connector"`
	SerialPort string        `json:"serial_port" toml:"serial_port" yaml:"serial_port"`
	SerialBaud int           `json:"serial_baud" toml:"serial_baud" yaml:"serial_baud"`
	Host       string        `json:"host" toml:"host" yaml:"host"`
	Port       int           `json:"port" toml:"port" yaml:"port"`

	// SettleMS is how long a one-shot send waits after opening a serial port.
	// Boards that reset on DTR drop input until their bootloader exits. 0 sends
	// right away.
	SettleMS int `json:"settle_ms" toml:"settle_ms" yaml:"settle_ms"`
}

// TelemetryConfig controls line framing and what happens to received readings.
type TelemetryConfig struct {
	OnMalformed  string `json:"on_malformed" toml:"on_malformed" yaml:"on_malformed"`
	MaxLineBytes int    `json:"max_line_bytes" toml:"max_line_bytes" yaml:"max_line_bytes"`
	// LineTerminator is appended to outbound lines; unset means "\n".
	LineTerminator  *string `json:"line_terminator,omitempty" toml:"line_terminator,omitempty" yaml:"line_terminator,omitempty"`
	PersistReadings bool    `json:"persist_readings" toml:"persist_readings" yaml:"persist_readings"`
}

type ColorConfig struct {
	Red   int `json:"red" toml:"red" yaml:"red"`
	Green int `json:"green" toml:"green" yaml:"green"`
	Blue  int `json:"blue" toml:"blue" yaml:"blue"`
}

// ReactionConfig selects the automatic LED response to readings.
type ReactionConfig struct {
	Mode  string      `json:"mode" toml:"mode" yaml:"mode"`
	Color ColorConfig `json:"color" toml:"color" yaml:"color"`
}

// CompletionConfig configures the text completion client.
type CompletionConfig struct {
	Endpoint  string `json:"endpoint" toml:"endpoint" yaml:"endpoint"`
	Prompt    string `json:"prompt" toml:"prompt" yaml:"prompt"`
	APIKeyEnv string `json:"api_key_env" toml:"api_key_env" yaml:"api_key_env"`
}

// TemplateConfig configures the image template render client.
type TemplateConfig struct {
	Endpoint   string `json:"endpoint" toml:"endpoint" yaml:"endpoint"`
	TemplateID string `json:"template_id" toml:"template_id" yaml:"template_id"`
	APIKeyEnv  string `json:"api_key_env" toml:"api_key_env" yaml:"api_key_env"`
}

type ServerConfig struct {
	Listen string `json:"listen" toml:"listen" yaml:"listen"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	ConnectionStatus bool `json:"connection_status" toml:"connection_status" yaml:"connection_status"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection    ConnectionConfig   `json:"connection" toml:"connection" yaml:"connection"`
	Logging       LoggingConfig      `json:"logging" toml:"logging" yaml:"logging"`
	Telemetry     TelemetryConfig    `json:"telemetry" toml:"telemetry" yaml:"telemetry"`
	Reaction      ReactionConfig     `json:"reaction" toml:"reaction" yaml:"reaction"`
	Completion    CompletionConfig   `json:"completion" toml:"completion" yaml:"completion"`
	Template      TemplateConfig     `json:"template" toml:"template" yaml:"template"`
	Server        ServerConfig       `json:"server" toml:"server" yaml:"server"`
	Notifications NotificationConfig `json:"notifications" toml:"notifications" yaml:"notifications"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorSerial,
			SerialBaud: DefaultSerialBaud,
			Port:       DefaultIPPort,
			SettleMS:   DefaultSettleMS,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			OnMalformed:  "fail",
			MaxLineBytes: DefaultMaxLineBytes,
		},
		Reaction: ReactionConfig{
			Mode: "none",
		},
		Completion: CompletionConfig{
			APIKeyEnv: "COMPLETION_API_KEY",
		},
		Template: TemplateConfig{
			Endpoint:  DefaultTemplateEndpoint,
			APIKeyEnv: "TEMPLATE_API_KEY",
		},
	}
}

// FormatForPath picks the encoding from the file extension. Unknown
// extensions are treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from the --config flag or the user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(raw, FormatForPath(cleanPath), &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.FillMissingDefaults()

	return cfg, nil
}

// Decode overlays raw onto cfg, so fields absent from raw keep their values.
func Decode(raw []byte, format Format, cfg *AppConfig) error {
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(raw), cfg); err != nil {
			return fmt.Errorf("decode config toml: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("decode config json: %w", err)
		}
	}

	return nil
}

func Encode(cfg AppConfig, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode config toml: %w", err)
		}

		return buf.Bytes(), nil
	case FormatYAML:
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode config yaml: %w", err)
		}

		return raw, nil
	default:
		raw, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode config json: %w", err)
		}

		return raw, nil
	}
}

func (c *AppConfig) FillMissingDefaults() {
	def := Default()
	if c.Connection.Connector == "" {
		c.Connection.Connector = def.Connection.Connector
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultIPPort
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Telemetry.OnMalformed == "" {
		c.Telemetry.OnMalformed = def.Telemetry.OnMalformed
	}
	if c.Telemetry.MaxLineBytes == 0 {
		c.Telemetry.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.Reaction.Mode == "" {
		c.Reaction.Mode = def.Reaction.Mode
	}
	if c.Completion.APIKeyEnv == "" {
		c.Completion.APIKeyEnv = def.Completion.APIKeyEnv
	}
	if c.Template.Endpoint == "" {
		c.Template.Endpoint = def.Template.Endpoint
	}
	if c.Template.APIKeyEnv == "" {
		c.Template.APIKeyEnv = def.Template.APIKeyEnv
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	case ConnectorIP:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("ip host is required")
		}
		if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
			return fmt.Errorf("ip port out of range: %d", c.Connection.Port)
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	if c.Connection.SettleMS < 0 {
		return fmt.Errorf("settle_ms must not be negative: %d", c.Connection.SettleMS)
	}

	switch strings.ToLower(c.Telemetry.OnMalformed) {
	case "", "fail", "skip":
	default:
		return fmt.Errorf("unknown on_malformed policy: %s", c.Telemetry.OnMalformed)
	}
	if c.Telemetry.MaxLineBytes < 0 {
		return fmt.Errorf("max_line_bytes must not be negative: %d", c.Telemetry.MaxLineBytes)
	}

	switch strings.ToLower(c.Reaction.Mode) {
	case "", "none", "brightness_from_x":
	case "color_on_press":
		for name, v := range map[string]int{
			"red":   c.Reaction.Color.Red,
			"green": c.Reaction.Color.Green,
			"blue":  c.Reaction.Color.Blue,
		} {
			if v < 0 || v > 255 {
				return fmt.Errorf("reaction color %s out of range 0..255: %d", name, v)
			}
		}
	default:
		return fmt.Errorf("unknown reaction mode: %s", c.Reaction.Mode)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Logging.Format)
	}
	for name, level := range c.Logging.Components {
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("unknown log level for component %s: %s", name, level)
		}
	}

	return nil
}

// Save writes cfg in the format implied by the path extension, replacing the
// file atomically.
func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := Encode(cfg, FormatForPath(path))
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
