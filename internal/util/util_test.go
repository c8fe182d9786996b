package util

import "testing"

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantHost string
		wantPort int
	}{
		{name: "host and port", in: "ssh.example.com:2020", wantHost: "ssh.example.com", wantPort: 2020},
		{name: "host only", in: "ssh.example.com", wantHost: "ssh.example.com", wantPort: 32222},
		{name: "empty", in: "", wantHost: DefaultSSHHost, wantPort: 32222},
		{name: "bad port", in: "ssh.example.com:abc", wantHost: "ssh.example.com", wantPort: 32222},
		{name: "port out of range", in: "ssh.example.com:70000", wantHost: "ssh.example.com", wantPort: 32222},
		{name: "missing host", in: ":2020", wantHost: DefaultSSHHost, wantPort: 2020},
		{name: "ipv6", in: "[::1]:2222", wantHost: "::1", wantPort: 2222},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port := SplitEndpoint(tt.in, DefaultSSHHost, DefaultSSHPort)
			if host != tt.wantHost || port != tt.wantPort {
				t.Fatalf("SplitEndpoint(%q) = %s, %d; want %s, %d", tt.in, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	tests := map[string]string{
		"tok123\n":            "tok123",
		"  tok123  \r\n":      "tok123",
		"\ntok123\nmore\n":    "tok123",
		"":                    "",
		"   \n":               "",
		"eyJ.a.b\nWarning: x": "eyJ.a.b",
	}
	for in, want := range tests {
		if got := FirstLine(in); got != want {
			t.Errorf("FirstLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "yes", "TRUE", "on", "anything"} {
		if !Truthy(v) {
			t.Errorf("Truthy(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "No", " off "} {
		if Truthy(v) {
			t.Errorf("Truthy(%q) = true", v)
		}
	}
}

func TestValidatePort(t *testing.T) {
	if err := ValidatePort(32222); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePort(0); err == nil {
		t.Fatal("expected error for port 0")
	}
}
