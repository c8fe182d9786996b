package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/treykane/lagoon-alias/internal/alias"
	"github.com/treykane/lagoon-alias/internal/cache"
	"github.com/treykane/lagoon-alias/internal/model"
	"github.com/treykane/lagoon-alias/internal/security"
	"github.com/treykane/lagoon-alias/internal/sshclient"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	out   sshclient.Output
	err   error
}

func (r *countingRunner) Run(_ context.Context, _ sshclient.Command) (sshclient.Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.out, r.err
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func apiServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func acmeSettings(api string) model.Settings {
	return model.Settings{
		APIEndpoint:         api,
		SSHEndpoint:         model.SSHEndpoint{Host: "ssh.example.com", Port: 32222},
		ProjectName:         "acme",
		SSHTimeoutSeconds:   30,
		CacheTimeoutSeconds: 600,
		AliasNamespace:      "lagoon",
		FilesPath:           "/app/web/sites/default/files",
		CacheBackend:        cache.BackendFile,
		SSHTransport:        "exec",
	}
}

const acmeBody = `{"data":{"project":{"productionEnvironment":"master","environments":[
  {"name":"master","kubernetesNamespaceName":"acme-master","kubernetes":{"sshHost":"ssh.example.com","sshPort":"32222"}}
]}}}`

func TestEndToEndAcme(t *testing.T) {
	srv := apiServer(t, acmeBody)
	runner := &countingRunner{out: sshclient.Output{Stdout: []byte("tok123\n")}}
	dir := t.TempDir()
	s := acmeSettings(srv.URL)

	run := func() Result {
		p, err := Open(context.Background(), s, Options{CacheDir: dir, Runner: runner, Logger: discardLogger(), RunID: "run-1"})
		if err != nil {
			t.Fatal(err)
		}
		defer p.Close()
		res, err := p.Run(context.Background(), s)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	res := run()
	if res.Warning != nil {
		t.Fatalf("unexpected warning: %v", res.Warning)
	}
	lines := alias.Lines(res.Aliases, s.AliasNamespace, false)
	if len(lines) != 1 || lines[0] != "@lagoon.acme-master (production)" {
		t.Fatalf("unexpected aliases %v", lines)
	}

	entry, ok := cache.New(cache.NewFileStore(dir)).Get(cache.TokenKey)
	if !ok || entry.Payload != "tok123" {
		t.Fatalf("expected token cached under jwt_token, got %+v", entry)
	}

	run()
	if runner.Calls() != 1 {
		t.Fatalf("second run within the TTL must not use ssh, got %d calls", runner.Calls())
	}
}

func TestIgnoreCacheRefetches(t *testing.T) {
	srv := apiServer(t, acmeBody)
	runner := &countingRunner{out: sshclient.Output{Stdout: []byte("tok123")}}
	dir := t.TempDir()
	s := acmeSettings(srv.URL)
	s.IgnoreCache = true

	for i := 0; i < 2; i++ {
		p, err := Open(context.Background(), s, Options{CacheDir: dir, Runner: runner, Logger: discardLogger()})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Run(context.Background(), s); err != nil {
			t.Fatal(err)
		}
		_ = p.Close()
	}
	if runner.Calls() != 2 {
		t.Fatalf("expected ssh on every run when the cache is ignored, got %d", runner.Calls())
	}
}

func TestOverrideTokenSkipsSSH(t *testing.T) {
	srv := apiServer(t, acmeBody)
	runner := &countingRunner{}
	s := acmeSettings(srv.URL)
	s.OverrideToken = "tok123"
	s.CacheBackend = cache.BackendMemory

	p, err := Open(context.Background(), s, Options{CacheDir: t.TempDir(), Runner: runner, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	res, err := p.Run(context.Background(), s)
	if err != nil || res.Warning != nil {
		t.Fatalf("unexpected failure %v %v", err, res.Warning)
	}
	if runner.Calls() != 0 {
		t.Fatalf("override token must bypass ssh, got %d calls", runner.Calls())
	}
}

func TestRecoverableFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		runner *countingRunner
		mutate func(*model.Settings)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing project",
			body:   acmeBody,
			runner: &countingRunner{},
			mutate: func(s *model.Settings) { s.ProjectName = "" },
			check: func(t *testing.T, err error) {
				var e *security.ConfigurationError
				if !errors.As(err, &e) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
			},
		},
		{
			name:   "ssh failure",
			body:   acmeBody,
			runner: &countingRunner{err: &sshclient.ExitError{Code: 255}},
			check: func(t *testing.T, err error) {
				var e *security.AuthenticationError
				if !errors.As(err, &e) {
					t.Fatalf("expected AuthenticationError, got %v", err)
				}
			},
		},
		{
			name:   "api rejects token",
			body:   acmeBody,
			runner: &countingRunner{out: sshclient.Output{Stdout: []byte("wrong-token")}},
			check: func(t *testing.T, err error) {
				var e *security.APIError
				if !errors.As(err, &e) || e.Status != http.StatusUnauthorized {
					t.Fatalf("expected 401 APIError, got %v", err)
				}
			},
		},
		{
			name:   "no environments",
			body:   `{"data":{"project":{"environments":[]}}}`,
			runner: &countingRunner{out: sshclient.Output{Stdout: []byte("tok123")}},
			check: func(t *testing.T, err error) {
				var e *security.EmptyResultWarning
				if !errors.As(err, &e) || e.Project != "acme" {
					t.Fatalf("expected EmptyResultWarning, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, tt.body)
			s := acmeSettings(srv.URL)
			s.CacheBackend = cache.BackendMemory
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			p, err := Open(context.Background(), s, Options{CacheDir: t.TempDir(), Runner: tt.runner, Logger: logger})
			if err != nil {
				t.Fatal(err)
			}
			defer p.Close()

			res, err := p.Run(context.Background(), s)
			if err != nil {
				t.Fatalf("recoverable failures must not be errors: %v", err)
			}
			if len(res.Aliases) != 0 {
				t.Fatalf("expected no aliases, got %+v", res.Aliases)
			}
			tt.check(t, res.Warning)
			if strings.Count(logs.String(), "level=WARN") != 1 {
				t.Fatalf("expected exactly one warning, got:\n%s", logs.String())
			}
		})
	}
}

func TestDisabledShortCircuits(t *testing.T) {
	runner := &countingRunner{}
	s := acmeSettings("http://127.0.0.1:1")
	s.DisableAliases = true
	p := New(nil, nil, nil, discardLogger())
	res, err := p.Run(context.Background(), s)
	if err != nil || !errors.Is(res.Warning, ErrDisabled) {
		t.Fatalf("expected disabled warning, got %v %v", res.Warning, err)
	}
	if runner.Calls() != 0 {
		t.Fatal("disabled run must not touch ssh")
	}
}

type failingTokens struct{ err error }

func (f failingTokens) Token(context.Context, model.Settings) (string, error) { return "", f.err }

func TestUnexpectedErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	p := New(failingTokens{err: boom}, nil, nil, discardLogger())
	_, err := p.Run(context.Background(), acmeSettings(""))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewRunner(t *testing.T) {
	if _, ok := NewRunner("native").(*sshclient.NativeRunner); !ok {
		t.Fatal("expected native runner")
	}
	if _, ok := NewRunner("exec").(*sshclient.ExecRunner); !ok {
		t.Fatal("expected exec runner")
	}
}
