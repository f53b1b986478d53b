// Package config parses the YAML configuration document that describes a
// CuckooDrive composite: its backends, part size, lock settings, and the
// ambient logging/debug knobs. Scalar fields with their own grammar
// (Version, Loglevel, Duration) validate themselves in UnmarshalYAML so a
// bad document fails at parse time, not at first use.
package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Version is a major.minor configuration format version. Both components
// must parse as unsigned integers.
type Version string

// CurrentVersion is the only configuration format version this package
// parses.
var CurrentVersion = Version("0.1")

// UnmarshalYAML validates that a scalar like "0.1" has two numeric parts.
func (v *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid version %q: expected MAJOR.MINOR", s)
	}
	if _, err := strconv.ParseUint(parts[0], 10, 0); err != nil {
		return fmt.Errorf("invalid version %q: %w", s, err)
	}
	if _, err := strconv.ParseUint(parts[1], 10, 0); err != nil {
		return fmt.Errorf("invalid version %q: %w", s, err)
	}

	*v = Version(s)
	return nil
}

// Loglevel is the granularity at which the ambient stack logs. It is
// validated and lowercased on parse.
type Loglevel string

func (l *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	s = strings.ToLower(s)
	switch s {
	case "", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid log level %q: must be one of [error, warn, info, debug]", s)
	}

	*l = Loglevel(s)
	return nil
}

// Duration parses a Go duration string ("10s", "500ms") the way yaml.v2
// can't do for time.Duration out of the box.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Parameters is a backend-specific key-value parameters map, passed straight
// through to backend/factory.Create.
type Parameters map[string]interface{}

// Lock configures the composite's advisory cross-writer lock.
type Lock struct {
	Filename string   `yaml:"filename,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Delay    Duration `yaml:"delay,omitempty"`
}

// Composite configures the part size and locking behavior shared by the
// whole fan-out namespace.
type Composite struct {
	// MaxPartSize is required and positive: the per-part byte cap every
	// backend write is split against.
	MaxPartSize int64 `yaml:"maxpartsize"`
	Lock        Lock  `yaml:"lock,omitempty"`
}

// Backend names one member of the composite: its factory type, capacity
// ceiling, and driver-specific parameters.
type Backend struct {
	Name    string     `yaml:"name"`
	Type    string     `yaml:"type"`
	MaxSize int64      `yaml:"maxsize,omitempty"`
	Params  Parameters `yaml:"params,omitempty"`
}

// Log configures the ambient logrus-based logging stack.
type Log struct {
	Level     Loglevel `yaml:"level,omitempty"`
	Formatter string   `yaml:"formatter,omitempty"`
}

// Debug configures the optional debug/metrics HTTP listener.
type Debug struct {
	Addr string `yaml:"addr,omitempty"`
}

// Config is the parsed form of a CuckooDrive YAML configuration document.
type Config struct {
	Version   Version   `yaml:"version"`
	Composite Composite `yaml:"composite"`
	Backends  []Backend `yaml:"backends"`
	Log       Log       `yaml:"log,omitempty"`
	Debug     Debug     `yaml:"debug,omitempty"`
}

// Parse reads and validates a Config from rd. It fails fast on structural
// problems that would otherwise surface much later as confusing runtime
// errors: a missing/zero maxpartsize, a backend with no name, or duplicate
// backend names.
func Parse(rd io.Reader) (*Config, error) {
	raw, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported configuration version %q: want %q", c.Version, CurrentVersion)
	}
	if c.Composite.MaxPartSize <= 0 {
		return fmt.Errorf("composite.maxpartsize is required and must be positive")
	}

	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend entry missing required \"name\"")
		}
		if b.Type == "" {
			return fmt.Errorf("backend %q missing required \"type\"", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
	}

	return nil
}
