package appconfig

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/treykane/lagoon-alias/internal/cache"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/util"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Resolve.
const (
	EnvOverrideAPI        = "LAGOON_OVERRIDE_API"
	EnvOverrideSSH        = "LAGOON_OVERRIDE_SSH"
	EnvProject            = "LAGOON_PROJECT"
	EnvOverrideSSHTimeout = "LAGOON_OVERRIDE_SSH_TIMEOUT"
	EnvOverrideJWTToken   = "LAGOON_OVERRIDE_JWT_TOKEN"
	EnvCacheTimeout       = "LAGOON_CACHE_TIMEOUT"
	EnvIgnoreCache        = "LAGOON_IGNORE_CACHE"
	EnvIgnoreDrushCache   = "LAGOON_IGNORE_DRUSHCACHE"
	EnvDisableAliases     = "LAGOON_DISABLE_ALIASES"
	EnvSSHKey             = "LAGOON_SSH_KEY"
	EnvSSHTransport       = "LAGOON_SSH_TRANSPORT"
	EnvCacheBackend       = "LAGOON_CACHE_BACKEND"
)

// SSH transports accepted in Settings.
const (
	TransportExec   = "exec"
	TransportNative = "native"
)

// Resolve merges the project-local source, environment overrides and
// built-in defaults into one Settings value. Environment wins over the local
// file, which wins over defaults. Resolve never fails: unusable values fall
// back to their defaults, and a missing project name is left empty for
// RequireProject to report later.
func Resolve(local Source, env map[string]string) model.Settings {
	if local == nil {
		local = MapSource{}
	}
	pick := func(envKey, localKey, fallback string) string {
		if v := strings.TrimSpace(env[envKey]); v != "" {
			return v
		}
		if localKey != "" {
			if v := stringValue(local, localKey); v != "" {
				return v
			}
		}
		return fallback
	}

	s := model.Settings{
		APIEndpoint:    pick(EnvOverrideAPI, "api", util.DefaultAPIEndpoint),
		ProjectName:    pick(EnvProject, "project", ""),
		OverrideToken:  strings.TrimSpace(env[EnvOverrideJWTToken]),
		SSHKeyPath:     strings.TrimSpace(env[EnvSSHKey]),
		IgnoreCache:    util.Truthy(env[EnvIgnoreCache]) || util.Truthy(env[EnvIgnoreDrushCache]),
		DisableAliases: util.Truthy(env[EnvDisableAliases]),
		AliasNamespace: pick("", "alias_namespace", util.DefaultAliasNamespace),
		FilesPath:      pick("", "files_path", util.DefaultFilesPath),
	}

	host, port := util.SplitEndpoint(
		pick(EnvOverrideSSH, "ssh", util.JoinEndpoint(util.DefaultSSHHost, util.DefaultSSHPort)),
		util.DefaultSSHHost, util.DefaultSSHPort)
	s.SSHEndpoint = model.SSHEndpoint{Host: host, Port: port}

	s.SSHTimeoutSeconds = intSetting(env[EnvOverrideSSHTimeout], local, "ssh_port_timeout", util.DefaultSSHTimeoutSeconds, 1)
	s.CacheTimeoutSeconds = intSetting(env[EnvCacheTimeout], local, "cache_timeout", util.DefaultCacheTimeoutSeconds, 0)

	s.SSHTransport = strings.ToLower(pick(EnvSSHTransport, "", TransportExec))
	if s.SSHTransport != TransportNative {
		s.SSHTransport = TransportExec
	}
	s.CacheBackend = strings.ToLower(pick(EnvCacheBackend, "", cache.BackendFile))
	switch s.CacheBackend {
	case cache.BackendFile, cache.BackendSQLite, cache.BackendMemory:
	default:
		s.CacheBackend = cache.BackendFile
	}

	if raw, ok := local.Get("tasks"); ok {
		pre, post, err := parseTasks(raw)
		if err != nil {
			slog.Warn("ignoring malformed tasks section in .lagoon.yml", "error", err)
		}
		s.PreRolloutTasks, s.PostRolloutTasks = pre, post
	}
	return s
}

// RequireProject returns a ConfigurationError when no source named the
// project. Every network or SSH operation calls it first.
func RequireProject(s model.Settings) error {
	if strings.TrimSpace(s.ProjectName) == "" {
		return &security.ConfigurationError{Field: "project"}
	}
	return nil
}

func stringValue(src Source, key string) string {
	v, ok := src.Get(key)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int, int64, float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// intSetting resolves a numeric setting permissively: the first source that
// holds an integer >= min wins; anything else falls through to the default.
func intSetting(envValue string, local Source, localKey string, fallback, min int) int {
	if n, ok := parseInt(envValue); ok && n >= min {
		return n
	}
	if v, ok := local.Get(localKey); ok {
		if n, ok := parseInt(v); ok && n >= min {
			return n
		}
	}
	return fallback
}

func parseInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

type taskSection struct {
	PreRollout  []taskEntry `yaml:"pre-rollout"`
	PostRollout []taskEntry `yaml:"post-rollout"`
}

type taskEntry struct {
	Run model.Task `yaml:"run"`
}

// parseTasks re-decodes the loosely typed tasks value into task lists.
func parseTasks(raw any) (pre, post []model.Task, err error) {
	b, err := yaml.Marshal(raw)
	if err != nil {
		return nil, nil, err
	}
	var sec taskSection
	if err := yaml.Unmarshal(b, &sec); err != nil {
		return nil, nil, err
	}
	for _, e := range sec.PreRollout {
		pre = append(pre, e.Run)
	}
	for _, e := range sec.PostRollout {
		post = append(post, e.Run)
	}
	return pre, post, nil
}
