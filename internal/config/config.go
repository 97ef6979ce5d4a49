package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oe-mirrors/pkgctl/internal/logging"
)

// Config stores the parsed global options file: a flat key/value map plus
// the "include" globs it pulled in. pkgctl's domain has no analogue for the
// teacher's structured "src"/"dest"/"arch" feed/destination/architecture
// directives (remotes and targets are spec.md §6's own `etc/pkg.d/*` and
// `-target` concepts instead), so this file is deliberately a generic
// option store rather than opkg's richer parsed form.
type Config struct {
	Options  map[string]string
	Includes []string
}

// Load parses the provided global options file and all includes referenced by
// "include" directives; a relative include glob is resolved against the
// directory of the file that names it. The parser is whitespace agnostic and ignores empty
// lines or comments (lines starting with "#" or "//"). Lines are "option key
// value..." or a bare "key value..."/"key=value"; anything else (including
// the teacher's "src"/"dest"/"arch" directives, present only for
// backward-compatible parsing of an existing opkg.conf) is stored verbatim
// under its first token as the key.
func Load(path string) (*Config, error) {
	cfg := &Config{Options: map[string]string{}}
	visited := map[string]bool{}

	var load func(string) error
	load = func(p string) error {
		if visited[p] {
			return nil
		}
		visited[p] = true

		logging.Debugf("config: loading file %s", p)

		file, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open config %s: %w", p, err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			raw := strings.TrimSpace(scanner.Text())
			if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "//") {
				continue
			}

			tokens := fields(raw)
			if len(tokens) == 0 {
				continue
			}

			switch tokens[0] {
			case "option":
				if len(tokens) < 3 {
					return fmt.Errorf("%s:%d: option expects key and value", p, lineNo)
				}
				key := tokens[1]
				value := strings.Join(tokens[2:], " ")
				cfg.Options[key] = value
			case "include":
				if len(tokens) < 2 {
					return fmt.Errorf("%s:%d: include expects a glob", p, lineNo)
				}
				pattern := tokens[1]
				cfg.Includes = append(cfg.Includes, pattern)
				logging.Debugf("config: discovered include %s from %s", pattern, p)
				globPattern := pattern
				if !filepath.IsAbs(globPattern) {
					globPattern = filepath.Join(filepath.Dir(p), globPattern)
				}
				matches, err := filepath.Glob(globPattern)
				if err != nil {
					return fmt.Errorf("%s:%d: invalid glob: %w", p, lineNo, err)
				}
				if len(matches) == 0 {
					logging.Debugf("config: include pattern %s from %s matched no files", pattern, p)
					continue
				}
				for _, match := range matches {
					logging.Debugf("config: including %s", match)
					if err := load(match); err != nil {
						return err
					}
				}
			default:
				// Keep unknown directives (including opkg's "src"/"dest"/"arch"
				// lines) rather than failing: this parser doesn't understand
				// their structure, but it shouldn't refuse to load a file that
				// has them.
				if len(tokens) >= 2 {
					cfg.Options[tokens[0]] = strings.Join(tokens[1:], " ")
					continue
				}
				if strings.Contains(tokens[0], "=") && len(tokens) == 1 {
					parts := strings.SplitN(tokens[0], "=", 2)
					cfg.Options[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
					continue
				}
				return fmt.Errorf("%s:%d: unsupported directive %q", p, lineNo, tokens[0])
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read config %s: %w", p, err)
		}
		return nil
	}

	if err := load(path); err != nil {
		return nil, err
	}

	logging.Debugf("config: loaded %d options, %d includes", len(cfg.Options), len(cfg.Includes))

	return cfg, nil
}

// FindOption returns a configuration value using a case-sensitive key. If the
// key is not found the provided fallback is returned.
func (c *Config) FindOption(key, fallback string) string {
	if c == nil {
		return fallback
	}
	if v, ok := c.Options[key]; ok {
		return v
	}
	return fallback
}

// CacheDir returns the directory used to cache downloaded package archives.
func (c *Config) CacheDir() string {
	if c == nil {
		return ""
	}
	if cache := c.FindOption("cache_dir", ""); cache != "" {
		return cache
	}
	if tmp := c.FindOption("tmp_dir", ""); tmp != "" {
		return tmp
	}
	return "/tmp"
}

// fields is similar to strings.Fields but keeps path-like values intact by
// allowing quoted strings. Only double quotes are supported.
func fields(line string) []string {
	var result []string
	var current strings.Builder
	inQuote := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch ch {
		case '"':
			inQuote = !inQuote
		case ' ', '\t':
			if inQuote {
				current.WriteByte(ch)
			} else if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// EnsureCacheDir creates cfg's cache directory (mode 0777 before umask) if it
// does not already exist, and returns its path.
func EnsureCacheDir(cfg *Config) (string, error) {
	if cfg == nil {
		return "", errors.New("nil config")
	}
	cache := cfg.CacheDir()
	if cache == "" {
		return "", errors.New("cache directory not configured")
	}
	if err := os.MkdirAll(cache, fs.ModePerm); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	logging.Debugf("config: ensured cache directory %s", cache)
	return cache, nil
}
