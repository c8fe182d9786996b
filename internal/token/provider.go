// Package token obtains the Lagoon API bearer token.
//
// A token comes from, in order: the override in Settings, the cache, or the
// "token" command on the Lagoon SSH service. A freshly fetched token is cached
// for the configured TTL, shortened to the token's own exp claim when it has
// one.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/cache"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/sshclient"
	"github.com/treykane/lagoon-alias/internal/util"
)

// ErrEmptyToken is wrapped when the token command printed nothing.
var ErrEmptyToken = errors.New("token command returned no output")

// Provider resolves tokens. A nil cache disables caching.
type Provider struct {
	runner sshclient.Runner
	cache  *cache.Cache
	clock  cache.Clock
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the clock used to clamp the cache TTL.
func WithClock(c cache.Clock) Option { return func(p *Provider) { p.clock = c } }

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvider returns a Provider that fetches through runner.
func NewProvider(runner sshclient.Runner, c *cache.Cache, opts ...Option) *Provider {
	p := &Provider{runner: runner, cache: c, clock: cache.RealClock(), logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Token returns a bearer token for s. Fetch failures are reported as
// *security.AuthenticationError and leave the cache untouched.
func (p *Provider) Token(ctx context.Context, s model.Settings) (string, error) {
	if s.HasOverrideToken() {
		p.logger.Debug("using token from environment override")
		return s.OverrideToken, nil
	}
	if p.cache != nil {
		if e, ok := p.cache.Get(cache.TokenKey); ok && e.Payload != "" {
			p.logger.Debug("using cached token", "expires_at", e.ExpiresAt)
			return e.Payload, nil
		}
	}
	if err := appconfig.RequireProject(s); err != nil {
		return "", err
	}

	tok, err := p.fetch(ctx, s)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		ttl := p.ttl(tok, s.CacheTimeoutSeconds)
		if err := p.cache.Set(cache.TokenKey, tok, ttl); err != nil {
			p.logger.Warn("could not cache token", "error", err)
		}
	}
	return tok, nil
}

func (p *Provider) fetch(ctx context.Context, s model.Settings) (string, error) {
	timeout := time.Duration(s.SSHTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(util.DefaultSSHTimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := sshclient.Command{
		Host:           s.SSHEndpoint.Host,
		Port:           s.SSHEndpoint.Port,
		User:           util.TokenUser,
		KeyPath:        s.SSHKeyPath,
		Remote:         util.TokenCommand,
		ConnectTimeout: util.SSHConnectTimeout,
	}
	p.logger.Debug("requesting token over ssh", "endpoint", s.SSHEndpoint.String(), "timeout", timeout)

	out, err := p.runner.Run(ctx, cmd)
	if err != nil {
		return "", &security.AuthenticationError{
			Endpoint: s.SSHEndpoint.String(),
			Detail:   util.FirstLine(string(out.Stderr)),
			Err:      err,
		}
	}
	tok := util.FirstLine(string(out.Stdout))
	if tok == "" {
		return "", &security.AuthenticationError{
			Endpoint: s.SSHEndpoint.String(),
			Detail:   util.FirstLine(string(out.Stderr)),
			Err:      ErrEmptyToken,
		}
	}
	p.logger.Debug("token received", "token", security.TokenPreview(tok))
	return tok, nil
}

// ttl clamps the configured TTL so a cached token never outlives its exp.
func (p *Provider) ttl(tok string, configured int) int {
	exp, ok := Expiry(tok)
	if !ok {
		return configured
	}
	remaining := int(exp.Sub(p.clock.Now()) / time.Second)
	if remaining < configured {
		return remaining
	}
	return configured
}

// Claims decodes the token's payload without verifying its signature. The
// token is issued by the Lagoon SSH service and verified by the API, so the
// client only reads it.
func Claims(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(tok), claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return claims, nil
}

// Expiry returns the exp claim of tok when tok is a JWT carrying one.
func Expiry(tok string) (time.Time, bool) {
	claims, err := Claims(tok)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
