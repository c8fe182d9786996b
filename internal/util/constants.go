// Package util provides common utility functions and constants used across the
// lagoon-alias application. This package is intentionally kept dependency-free
// (no imports from other internal/* packages) to serve as a shared foundation
// without introducing circular dependencies.
package util

import "time"

const (
	// DefaultAPIEndpoint is the Lagoon GraphQL endpoint used when neither
	// .lagoon.yml nor LAGOON_OVERRIDE_API provide one.
	DefaultAPIEndpoint = "https://api.lagoon.amazeeio.cloud/graphql"

	// DefaultSSHHost is the Lagoon SSH service host. It serves both the token
	// command and, unless an environment reports its own sshHost, the
	// environment shells themselves.
	DefaultSSHHost = "ssh.lagoon.amazeeio.cloud"

	// DefaultSSHPort is the port paired with DefaultSSHHost.
	DefaultSSHPort = 32222

	// DefaultSSHTimeoutSeconds bounds the whole token command (connect, auth,
	// remote execution, output).
	DefaultSSHTimeoutSeconds = 30

	// DefaultCacheTimeoutSeconds is the TTL applied to the cached token and the
	// cached environment list.
	DefaultCacheTimeoutSeconds = 600

	// SSHConnectTimeout is the handshake bound passed to ssh as
	// ConnectTimeout. It is independent of the configured overall timeout.
	SSHConnectTimeout = 5 * time.Second

	// TokenUser is the service account that answers the token command.
	TokenUser = "lagoon"

	// TokenCommand is the single remote command issued to obtain a token.
	TokenCommand = "token"

	// DefaultAliasNamespace is the drush alias group; aliases render as
	// @lagoon.<namespace>.
	DefaultAliasNamespace = "lagoon"

	// DefaultFilesPath is the public files directory inside every Lagoon
	// Drupal container.
	DefaultFilesPath = "/app/web/sites/default/files"

	// APIRequestTimeout caps a single GraphQL request.
	APIRequestTimeout = 30 * time.Second
)
