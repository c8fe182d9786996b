// Package lagoonapi queries the Lagoon GraphQL API for a project's
// environments.
package lagoonapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/cache"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/util"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Client fetches environment lists. A nil cache disables caching.
type Client struct {
	http      *http.Client
	cache     *cache.Cache
	logger    *slog.Logger
	requestID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestID sets the X-Request-Id header sent with every request.
func WithRequestID(id string) Option { return func(c *Client) { c.requestID = id } }

// NewClient returns a Client with a 30 second request timeout.
func NewClient(c *cache.Cache, opts ...Option) *Client {
	client := &Client{
		http:   &http.Client{Timeout: util.APIRequestTimeout},
		cache:  c,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(client)
	}
	return client
}

// Environments returns the project's environments, from the cache when a
// valid entry exists. An answer with no project or no environments is a
// valid empty result. Transport, status and GraphQL failures are reported as
// *security.APIError and are never cached.
func (c *Client) Environments(ctx context.Context, s model.Settings, token string) (model.ProjectEnvironments, error) {
	if err := appconfig.RequireProject(s); err != nil {
		return model.ProjectEnvironments{}, err
	}
	key := cache.EnvironmentsKey(s.ProjectName)
	if c.cache != nil {
		if e, ok := c.cache.Get(key); ok {
			pe, err := Parse([]byte(e.Payload))
			if err == nil {
				c.logger.Debug("using cached environments", "project", s.ProjectName, "count", len(pe.Environments))
				return pe, nil
			}
			c.logger.Warn("discarding unreadable cached environments", "project", s.ProjectName, "error", err)
		}
	}

	body, err := c.query(ctx, s, token)
	if err != nil {
		return model.ProjectEnvironments{}, err
	}
	pe, err := Parse(body)
	if err != nil {
		return model.ProjectEnvironments{}, &security.APIError{Endpoint: s.APIEndpoint, Status: http.StatusOK, Err: err}
	}

	if c.cache != nil {
		if err := c.cache.Set(key, string(body), s.CacheTimeoutSeconds); err != nil {
			c.logger.Warn("could not cache environments", "project", s.ProjectName, "error", err)
		}
	}
	return pe, nil
}

func (c *Client) query(ctx context.Context, s model.Settings, token string) ([]byte, error) {
	q := BuildQuery(s.ProjectName)
	c.logger.Debug("querying lagoon api", "endpoint", s.APIEndpoint, "project", s.ProjectName)

	payload, err := json.Marshal(map[string]string{"query": q})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &security.APIError{Endpoint: s.APIEndpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if c.requestID != "" {
		req.Header.Set("X-Request-Id", c.requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &security.APIError{Endpoint: s.APIEndpoint, Err: redactErr(err, token)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &security.APIError{Endpoint: s.APIEndpoint, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := util.FirstLine(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &security.APIError{
			Endpoint: s.APIEndpoint,
			Status:   resp.StatusCode,
			Err:      errors.New(security.RedactToken(msg, token)),
		}
	}
	c.logger.Debug("lagoon api responded", "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

func redactErr(err error, token string) error {
	msg := err.Error()
	if red := security.RedactToken(msg, token); red != msg {
		return errors.New(red)
	}
	return err
}

// BuildQuery renders the project query. The project name is embedded as a
// JSON string literal, which GraphQL accepts, so quotes and backslashes in
// the name cannot break out of the argument.
func BuildQuery(project string) string {
	name, _ := json.Marshal(project)
	var b strings.Builder
	b.WriteString("{\n  project:projectByName(name: ")
	b.Write(name)
	b.WriteString(`) {
    productionEnvironment
    standbyProductionEnvironment
    productionAlias
    standbyAlias
    environments {
      name
      kubernetesNamespaceName
      openshiftProjectName
      kubernetes {
        sshHost
        sshPort
      }
    }
  }
}`)
	return b.String()
}
