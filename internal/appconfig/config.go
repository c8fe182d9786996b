// Package appconfig resolves the effective Settings for one invocation and
// manages application file paths.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LagoonYmlName is the project-local configuration file.
const LagoonYmlName = ".lagoon.yml"

// Source is a read-only mapping of configuration keys to values.
type Source interface {
	Get(key string) (any, bool)
}

// MapSource adapts a plain map to Source. A nil map is an empty source.
type MapSource map[string]any

func (m MapSource) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// CacheDir returns the directory for cached tokens and API responses.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache/lagoon-alias.
func CacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "lagoon-alias"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".cache", "lagoon-alias"), nil
}

// FindProjectRoot walks upward from start and returns the first directory
// holding a .lagoon.yml or a composer.json. If neither is found, start is
// returned unchanged.
func FindProjectRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for dir := abs; ; {
		for _, marker := range []string{LagoonYmlName, "composer.json"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		dir = parent
	}
}

// LoadLagoonYml reads <root>/.lagoon.yml. A missing file yields an empty
// source; a malformed one is an error.
func LoadLagoonYml(root string) (MapSource, error) {
	path := filepath.Join(root, LagoonYmlName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return MapSource{}, nil
		}
		return nil, err
	}
	if strings.TrimSpace(string(b)) == "" {
		return MapSource{}, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return MapSource(m), nil
}

// EnvironMap turns os.Environ-style "KEY=value" pairs into a map.
func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
