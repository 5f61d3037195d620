// Package config loads the hexslice JSON configuration file. Every field is
// optional; the Get* accessors supply defaults for anything left unset, so an
// empty file (or no file at all) is a valid configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/hexslice/internal/domain"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "HEXSLICE_CONFIG"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Volume is a build volume in millimetres.
type Volume struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SerialConfig describes default serial line settings for printers that do
// not carry their own.
type SerialConfig struct {
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"`
}

// Config is the root configuration document.
type Config struct {
	DatabasePath      *string       `json:"database_path,omitempty"`
	HistoryEnabled    *bool         `json:"history_enabled,omitempty"`
	Flavor            *string       `json:"flavor,omitempty"`
	BedTemperature    *float64      `json:"bed_temperature,omitempty"`
	BuildVolume       *Volume       `json:"build_volume,omitempty"`
	LineWidth         *float64      `json:"line_width,omitempty"`
	AckTimeout        *string       `json:"ack_timeout,omitempty"` // duration string like "30s"
	Serial            *SerialConfig `json:"serial,omitempty"`
	AllowedOutputDirs []string      `json:"allowed_output_dirs,omitempty"`
}

// EmptyConfig returns a Config with every field unset.
func EmptyConfig() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Resolve picks the configuration source: an explicit path wins, then the
// HEXSLICE_CONFIG environment variable, then built-in defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return Load(flagPath)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return Load(env)
	}
	return EmptyConfig(), nil
}

// Validate checks that the configured values are usable.
func (c *Config) Validate() error {
	if c.Flavor != nil {
		if _, err := domain.ParseFlavor(*c.Flavor); err != nil {
			return err
		}
	}
	if c.BedTemperature != nil && (*c.BedTemperature < 0 || *c.BedTemperature > 150) {
		return fmt.Errorf("bed_temperature must be between 0 and 150, got %g", *c.BedTemperature)
	}
	if c.BuildVolume != nil {
		v := c.BuildVolume
		if v.X <= 0 || v.Y <= 0 || v.Z <= 0 {
			return fmt.Errorf("build_volume dimensions must be positive, got %gx%gx%g", v.X, v.Y, v.Z)
		}
	}
	if c.LineWidth != nil && (*c.LineWidth < 0.1 || *c.LineWidth > 2) {
		return fmt.Errorf("line_width must be between 0.1 and 2 mm, got %g", *c.LineWidth)
	}
	if c.AckTimeout != nil && *c.AckTimeout != "" {
		d, err := time.ParseDuration(*c.AckTimeout)
		if err != nil {
			return fmt.Errorf("invalid ack_timeout '%s': %w", *c.AckTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("ack_timeout must be positive, got %s", d)
		}
	}
	if s := c.Serial; s != nil {
		if s.BaudRate != nil && *s.BaudRate <= 0 {
			return fmt.Errorf("serial.baud_rate must be positive, got %d", *s.BaudRate)
		}
		if s.DataBits != nil && (*s.DataBits < 5 || *s.DataBits > 8) {
			return fmt.Errorf("serial.data_bits must be between 5 and 8, got %d", *s.DataBits)
		}
		if s.StopBits != nil && *s.StopBits != 1 && *s.StopBits != 2 {
			return fmt.Errorf("serial.stop_bits must be 1 or 2, got %d", *s.StopBits)
		}
		if s.Parity != nil {
			switch strings.ToUpper(*s.Parity) {
			case "", "N", "E", "O":
			default:
				return fmt.Errorf("serial.parity must be N, E or O, got %q", *s.Parity)
			}
		}
	}
	return nil
}

// GetDatabasePath returns the history database location. The default lives
// under $XDG_DATA_HOME (or ~/.local/share) in a hexslice directory.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath != nil && *c.DatabasePath != "" {
		return *c.DatabasePath
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "hexslice.db"
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "hexslice", "history.db")
}

// GetHistoryEnabled reports whether runs are recorded. Defaults to true.
func (c *Config) GetHistoryEnabled() bool {
	if c.HistoryEnabled == nil {
		return true
	}
	return *c.HistoryEnabled
}

// GetFlavor returns the G-code dialect. Defaults to Marlin.
func (c *Config) GetFlavor() domain.Flavor {
	if c.Flavor == nil {
		return domain.Marlin
	}
	f, err := domain.ParseFlavor(*c.Flavor)
	if err != nil {
		return domain.Marlin
	}
	return f
}

// GetBedTemperature returns the heated bed target in Celsius.
func (c *Config) GetBedTemperature() float64 {
	if c.BedTemperature == nil {
		return 60
	}
	return *c.BedTemperature
}

// GetBuildVolume returns the printable volume.
func (c *Config) GetBuildVolume() Volume {
	if c.BuildVolume == nil {
		return Volume{X: 220, Y: 220, Z: 250}
	}
	return *c.BuildVolume
}

// GetLineWidth returns the extrusion width in mm.
func (c *Config) GetLineWidth() float64 {
	if c.LineWidth == nil {
		return 0.4
	}
	return *c.LineWidth
}

// GetAckTimeout returns how long real-time streaming waits for "ok".
func (c *Config) GetAckTimeout() time.Duration {
	if c.AckTimeout == nil || *c.AckTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.AckTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSerial returns baud rate, data bits, stop bits and parity with 115200
// 8N1 filled in for anything unset.
func (c *Config) GetSerial() (baud, dataBits, stopBits int, parity string) {
	baud, dataBits, stopBits, parity = 115200, 8, 1, "N"
	s := c.Serial
	if s == nil {
		return
	}
	if s.BaudRate != nil {
		baud = *s.BaudRate
	}
	if s.DataBits != nil {
		dataBits = *s.DataBits
	}
	if s.StopBits != nil {
		stopBits = *s.StopBits
	}
	if s.Parity != nil && *s.Parity != "" {
		parity = strings.ToUpper(*s.Parity)
	}
	return
}

// GetAllowedOutputDirs returns the directories G-code may be written to.
// Empty means unrestricted.
func (c *Config) GetAllowedOutputDirs() []string {
	return append([]string(nil), c.AllowedOutputDirs...)
}
