package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	var c BridgeConfig
	c.SetDefaults()
	if c.Port != 5454 || c.PortMax != 5470 {
		t.Fatalf("ports = %d..%d", c.Port, c.PortMax)
	}
	if c.RequestTimeout != 120*time.Second {
		t.Fatalf("request timeout = %s", c.RequestTimeout)
	}
	if c.PeerPolicy != PolicyReject {
		t.Fatalf("peer policy = %q", c.PeerPolicy)
	}
	if c.LogFormat != LogFormatConsole {
		t.Fatalf("log format = %q", c.LogFormat)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	yml := "port: 6000\nport_max: 6010\nrequest_timeout: 30s\npeer_policy: replace\nallowed_origins: [\"https://www.figma.com\"]\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	var c BridgeConfig
	c.SetDefaults()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 6000 || c.PeerPolicy != PolicyReplace || c.RequestTimeout != 30*time.Second {
		t.Fatalf("file not applied: %+v", c)
	}

	t.Setenv("FIGMA_PLUGIN_BRIDGE_PORT", "6001")
	t.Setenv("REQUEST_TIMEOUT", "2.5")
	t.Setenv("LOG_FORMAT", " JSON ")
	c.ApplyEnv()
	if c.LogFormat != LogFormatJSON {
		t.Fatalf("env log format = %q", c.LogFormat)
	}
	if c.Port != 6001 {
		t.Fatalf("env port = %d", c.Port)
	}
	if c.RequestTimeout != 2500*time.Millisecond {
		t.Fatalf("env timeout = %s", c.RequestTimeout)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlagsFromCurrent(fs)
	if err := fs.Parse([]string{"--port", "6002", "--peer-policy", "reject", "--allowed-origins", "a, b"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Port != 6002 || c.PeerPolicy != PolicyReject {
		t.Fatalf("flags not applied: %+v", c)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[1] != "b" {
		t.Fatalf("origins = %v", c.AllowedOrigins)
	}
	if c.PortMax != 6010 {
		t.Fatalf("file value lost: port_max = %d", c.PortMax)
	}
}

func TestValidate(t *testing.T) {
	base := func() BridgeConfig {
		var c BridgeConfig
		c.SetDefaults()
		return c
	}
	tests := []struct {
		name string
		mut  func(*BridgeConfig)
	}{
		{"port", func(c *BridgeConfig) { c.Port = 70000 }},
		{"range", func(c *BridgeConfig) { c.PortMax = c.Port - 1 }},
		{"timeout", func(c *BridgeConfig) { c.RequestTimeout = -time.Second }},
		{"policy", func(c *BridgeConfig) { c.PeerPolicy = "last-wins" }},
		{"transport", func(c *BridgeConfig) { c.MCPTransport = "sse" }},
		{"log format", func(c *BridgeConfig) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		c := base()
		tt.mut(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("darwin", "/Users/me", "", "bridge.yaml"); got != filepath.Join("/Users/me", "Library", "Application Support", "fmcp-bridge", "bridge.yaml") {
		t.Fatalf("darwin path = %q", got)
	}
	if got := ResolveConfigPath("linux", "", "", "bridge.yaml"); got != filepath.Join("/etc", "fmcp-bridge", "bridge.yaml") {
		t.Fatalf("linux path = %q", got)
	}
	if got := ResolveConfigPath("windows", "", "", "bridge.yaml"); got != filepath.Join("C:/ProgramData", "fmcp-bridge", "bridge.yaml") {
		t.Fatalf("windows path = %q", got)
	}
}
