package doctor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/treykane/lagoon-alias/internal/appconfig"
	"github.com/treykane/lagoon-alias/internal/model"
)

func healthySettings() model.Settings {
	return appconfig.Resolve(appconfig.MapSource{"project": "acme"}, map[string]string{})
}

func hasCheck(r Report, check string) bool {
	for _, i := range r.Issues {
		if i.Check == check {
			return true
		}
	}
	return false
}

func TestRunHealthyProject(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".lagoon.yml"), []byte("project: acme\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cacheDir := filepath.Join(t.TempDir(), "cache")
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		t.Fatal(err)
	}
	r := Run(Inputs{
		ProjectRoot: root,
		Settings:    healthySettings(),
		CacheDir:    cacheDir,
		LookPath:    func() error { return nil },
	})
	if len(r.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", r.Issues)
	}
}

func TestRunReportsMissingProjectAndBinary(t *testing.T) {
	s := appconfig.Resolve(nil, map[string]string{})
	r := Run(Inputs{
		ProjectRoot: t.TempDir(),
		Settings:    s,
		LookPath:    func() error { return errors.New("ssh binary not found in PATH") },
	})
	for _, check := range []string{"ssh-binary", "project", "lagoon-yml"} {
		if !hasCheck(r, check) {
			t.Errorf("expected %s issue, got %+v", check, r.Issues)
		}
	}
	if !r.HasHigh() {
		t.Fatal("missing project must be high severity")
	}
	if r.Issues[0].Severity != SeverityHigh {
		t.Fatalf("issues must be sorted by severity, got %+v", r.Issues)
	}
}

func TestRunFlagsMalformedYmlAndPlainHTTP(t *testing.T) {
	s := healthySettings()
	s.APIEndpoint = "http://api.example.com/graphql"
	r := Run(Inputs{
		Settings:     s,
		LagoonYmlErr: errors.New("parse .lagoon.yml: yaml: line 2: did not find expected key"),
		LookPath:     func() error { return nil },
	})
	if !hasCheck(r, "lagoon-yml") || !hasCheck(r, "api-endpoint") {
		t.Fatalf("unexpected issues %+v", r.Issues)
	}
}

func TestRunNativeWithoutCredentials(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	s := healthySettings()
	s.SSHTransport = appconfig.TransportNative
	r := Run(Inputs{Settings: s})
	if !hasCheck(r, "ssh-credentials") {
		t.Fatalf("expected ssh-credentials issue, got %+v", r.Issues)
	}
	if hasCheck(r, "ssh-binary") {
		t.Fatal("native transport does not need the ssh binary")
	}
}

func TestRunFlagsNonCLITasks(t *testing.T) {
	s := healthySettings()
	s.PostRolloutTasks = []model.Task{{Name: "reload", Command: "nginx -s reload", Service: "nginx"}}
	r := Run(Inputs{Settings: s, LookPath: func() error { return nil }})
	if !hasCheck(r, "rollout-task") {
		t.Fatalf("expected rollout-task issue, got %+v", r.Issues)
	}
}

func TestRunJSONShape(t *testing.T) {
	r := Run(Inputs{Settings: appconfig.Resolve(nil, nil), LookPath: func() error { return nil }})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["issues"]; !ok {
		t.Fatalf("expected issues key in json output: %s", string(b))
	}
}
