// config.go - key=value persistent configuration (spec.md §6).
package dreamcast

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Config holds sectioned key=value settings, one "name=value" per line
// with "[section]" headers, per spec.md §6. A parse error is a warning,
// never a hard failure (spec.md §7's "Configuration parse error" row):
// ParseConfig always returns a usable Config, falling back to defaults
// for anything it could not read.
type Config struct {
	sections map[string]map[string]string
}

func newConfig() *Config {
	return &Config{sections: map[string]map[string]string{"": {}}}
}

// ParseConfig reads key=value text from r. Malformed lines are skipped
// and warned about via log rather than aborting the parse.
func ParseConfig(r io.Reader, log *Logger) *Config {
	cfg := newConfig()
	section := ""
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			if cfg.sections[section] == nil {
				cfg.sections[section] = map[string]string{}
			}
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			if log != nil {
				log.Warningf("config", "line %d: missing '=', skipping: %q", lineNo, line)
			}
			continue
		}
		cfg.sections[section][strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return cfg
}

// Get returns the raw string value for key in section, and whether it
// was present.
func (c *Config) Get(section, key string) (string, bool) {
	m, ok := c.sections[section]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

// Int returns the integer value for key, or def if absent/unparsable.
func (c *Config) Int(section, key string, def int) int {
	v, ok := c.Get(section, key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the boolean value for key, or def if absent/unparsable.
func (c *Config) Bool(section, key string, def bool) bool {
	v, ok := c.Get(section, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the duration value for key, or def if absent/unparsable.
func (c *Config) Duration(section, key string, def time.Duration) time.Duration {
	v, ok := c.Get(section, key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
