// Package pipeline runs alias discovery end to end: token, environments,
// aliases. It is the one place where the expected failure kinds are turned
// into warnings instead of errors.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/treykane/lagoon-alias/internal/alias"
	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/cache"
	"github.com/treykane/lagoon-alias/internal/lagoonapi"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/sshclient"
	"github.com/treykane/lagoon-alias/internal/token"
)

// ErrDisabled is reported in Result.Warning when LAGOON_DISABLE_ALIASES is set.
var ErrDisabled = errors.New("lagoon aliases are disabled by LAGOON_DISABLE_ALIASES")

// TokenSource yields the API bearer token.
type TokenSource interface {
	Token(ctx context.Context, s model.Settings) (string, error)
}

// EnvironmentSource yields a project's environments.
type EnvironmentSource interface {
	Environments(ctx context.Context, s model.Settings, token string) (model.ProjectEnvironments, error)
}

// Result is the outcome of one run. Warning is set, and Aliases empty, when
// the run ended in one of the recoverable failure kinds.
type Result struct {
	Project      string
	Environments model.ProjectEnvironments
	Aliases      []model.Alias
	Warning      error
}

// Pipeline chains the token source, environment source and alias builder.
type Pipeline struct {
	tokens TokenSource
	envs   EnvironmentSource
	cache  *cache.Cache
	logger *slog.Logger
}

// New assembles a Pipeline from its parts. c may be nil.
func New(tokens TokenSource, envs EnvironmentSource, c *cache.Cache, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{tokens: tokens, envs: envs, cache: c, logger: logger}
}

// Options tunes Open. Zero values select the production implementations.
type Options struct {
	CacheDir   string
	RunID      string
	Logger     *slog.Logger
	Runner     sshclient.Runner
	HTTPClient *http.Client
	Clock      cache.Clock
}

// Open wires a Pipeline from settings: the configured cache backend, SSH
// transport and API client. Close releases the cache.
func Open(ctx context.Context, s model.Settings, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := opts.CacheDir
	if dir == "" {
		d, err := appconfig.CacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	store, err := cache.OpenStore(ctx, s.CacheBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	cacheOpts := []cache.Option{cache.WithBypass(s.IgnoreCache), cache.WithLogger(logger)}
	tokenOpts := []token.Option{token.WithLogger(logger)}
	if opts.Clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.Clock))
		tokenOpts = append(tokenOpts, token.WithClock(opts.Clock))
	}
	c := cache.New(store, cacheOpts...)

	runner := opts.Runner
	if runner == nil {
		runner = NewRunner(s.SSHTransport)
	}
	apiOpts := []lagoonapi.Option{lagoonapi.WithLogger(logger), lagoonapi.WithRequestID(opts.RunID)}
	if opts.HTTPClient != nil {
		apiOpts = append(apiOpts, lagoonapi.WithHTTPClient(opts.HTTPClient))
	}

	return New(
		token.NewProvider(runner, c, tokenOpts...),
		lagoonapi.NewClient(c, apiOpts...),
		c,
		logger,
	), nil
}

// NewRunner returns the SSH transport named by Settings.SSHTransport.
func NewRunner(transport string) sshclient.Runner {
	if transport == appconfig.TransportNative {
		return sshclient.NewNativeRunner()
	}
	return sshclient.NewExecRunner()
}

// Tokens exposes the token source, for commands that only need a token.
func (p *Pipeline) Tokens() TokenSource { return p.tokens }

// Cache returns the pipeline's cache, or nil.
func (p *Pipeline) Cache() *cache.Cache { return p.cache }

// Close releases the cache store.
func (p *Pipeline) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

// Run resolves aliases for s. Configuration, authentication, API and empty
// result failures are logged once and returned in Result.Warning with a nil
// error; anything else is returned as an error.
func (p *Pipeline) Run(ctx context.Context, s model.Settings) (Result, error) {
	res := Result{Project: s.ProjectName}
	if s.DisableAliases {
		p.logger.Info(ErrDisabled.Error())
		res.Warning = ErrDisabled
		return res, nil
	}

	aliases, pe, tok, err := p.discover(ctx, s)
	if err != nil {
		if security.IsPipelineError(err) {
			p.logger.Warn(security.RedactToken(err.Error(), tok))
			res.Warning = err
			return res, nil
		}
		return res, err
	}
	res.Environments = pe
	res.Aliases = aliases
	p.logger.Debug("aliases resolved", "project", s.ProjectName, "count", len(aliases))
	return res, nil
}

func (p *Pipeline) discover(ctx context.Context, s model.Settings) ([]model.Alias, model.ProjectEnvironments, string, error) {
	if err := appconfig.RequireProject(s); err != nil {
		return nil, model.ProjectEnvironments{}, "", err
	}
	tok, err := p.tokens.Token(ctx, s)
	if err != nil {
		return nil, model.ProjectEnvironments{}, "", err
	}
	pe, err := p.envs.Environments(ctx, s, tok)
	if err != nil {
		return nil, model.ProjectEnvironments{}, tok, err
	}
	aliases := alias.Build(pe, s)
	if len(aliases) == 0 {
		return nil, pe, tok, &security.EmptyResultWarning{Project: s.ProjectName}
	}
	return aliases, pe, tok, nil
}
