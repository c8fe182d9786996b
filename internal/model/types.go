package model

import (
	"fmt"
	"net"
	"strconv"
)

// SSHEndpoint is a host/port pair for an SSH service.
type SSHEndpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (e SSHEndpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Task is one rollout task from .lagoon.yml.
type Task struct {
	Name    string `yaml:"name" json:"name"`
	Command string `yaml:"command" json:"command"`
	Service string `yaml:"service" json:"service"`
}

// Settings is the effective configuration for one invocation. It is produced
// once by appconfig.Resolve and passed by value to every component.
type Settings struct {
	APIEndpoint         string      `json:"api_endpoint"`
	SSHEndpoint         SSHEndpoint `json:"ssh_endpoint"`
	ProjectName         string      `json:"project_name"`
	SSHTimeoutSeconds   int         `json:"ssh_timeout_seconds"`
	CacheTimeoutSeconds int         `json:"cache_timeout_seconds"`
	OverrideToken       string      `json:"-"`
	SSHKeyPath          string      `json:"ssh_key_path,omitempty"`
	SSHTransport        string      `json:"ssh_transport"`
	IgnoreCache         bool        `json:"ignore_cache"`
	DisableAliases      bool        `json:"disable_aliases"`
	AliasNamespace      string      `json:"alias_namespace"`
	FilesPath           string      `json:"files_path"`
	CacheBackend        string      `json:"cache_backend"`
	PreRolloutTasks     []Task      `json:"pre_rollout_tasks,omitempty"`
	PostRolloutTasks    []Task      `json:"post_rollout_tasks,omitempty"`
}

// HasOverrideToken reports whether a token was supplied out of band.
func (s Settings) HasOverrideToken() bool {
	return s.OverrideToken != ""
}

// EnvironmentRecord is one environment as reported by the Lagoon API.
// SSHHost and SSHPort are zero when the API does not override them.
type EnvironmentRecord struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	SSHHost   string `json:"ssh_host,omitempty"`
	SSHPort   int    `json:"ssh_port,omitempty"`
}

// ProjectEnvironments is the parsed answer to the project query.
type ProjectEnvironments struct {
	ProductionEnvironment        string              `json:"production_environment"`
	StandbyProductionEnvironment string              `json:"standby_production_environment,omitempty"`
	ProductionAlias              string              `json:"production_alias,omitempty"`
	StandbyAlias                 string              `json:"standby_alias,omitempty"`
	Environments                 []EnvironmentRecord `json:"environments"`
}

// Alias is a connection shortcut derived from one EnvironmentRecord.
type Alias struct {
	Name         string `json:"name"`
	Environment  string `json:"environment"`
	IsProduction bool   `json:"is_production"`
	TargetHost   string `json:"host"`
	TargetUser   string `json:"user"`
	Port         int    `json:"port"`
	FilesPath    string `json:"files_path"`
	SSHOptions   string `json:"ssh_options"`
}

// Destination is the user@host argument for ssh.
func (a Alias) Destination() string {
	return fmt.Sprintf("%s@%s", a.TargetUser, a.TargetHost)
}
