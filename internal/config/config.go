package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Peer connection policies applied when a second peer connects while one is
// already attached.
const (
	PolicyReject  = "reject"
	PolicyReplace = "replace"
)

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// MCP transports for the outward tool layer.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// BridgeConfig holds configuration for the bridge process.
type BridgeConfig struct {
	ConfigFile       string        `yaml:"-"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	PortMax          int           `yaml:"port_max"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	PeerPolicy       string        `yaml:"peer_policy"`
	Heartbeat        time.Duration `yaml:"heartbeat"`
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	MaxFrameBytes    int64         `yaml:"max_frame_bytes"`
	AuditLogPath     string        `yaml:"audit_log_path"`
	MCPTransport     string        `yaml:"mcp_transport"`
	MCPAddr          string        `yaml:"mcp_addr"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	RedisAddr        string        `yaml:"redis_addr"`
	DrainTimeout     time.Duration `yaml:"drain_timeout"`
}

// SetDefaults initializes c with built-in defaults.
func (c *BridgeConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = LogFormatConsole
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 5454
	}
	if c.PortMax == 0 {
		c.PortMax = 5470
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.PeerPolicy == "" {
		c.PeerPolicy = PolicyReject
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = 15 * time.Second
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = 64 << 20
	}
	if c.MCPTransport == "" {
		c.MCPTransport = TransportStdio
	}
	if c.MCPAddr == "" {
		c.MCPAddr = "127.0.0.1:5480"
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("bridge.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *BridgeConfig) ApplyEnv() {
	if v := GetEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := GetEnv("LOG_FORMAT", ""); v != "" {
		c.LogFormat = strings.ToLower(strings.TrimSpace(v))
	}
	if v := GetEnv("FIGMA_BRIDGE_HOST", ""); v != "" {
		c.Host = v
	}
	if v := GetEnv("FIGMA_PLUGIN_BRIDGE_PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := GetEnv("FIGMA_PLUGIN_BRIDGE_PORT_MAX", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PortMax = n
		}
	}
	if v := GetEnv("REQUEST_TIMEOUT", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := GetEnv("PEER_POLICY", ""); v != "" {
		c.PeerPolicy = strings.ToLower(strings.TrimSpace(v))
	}
	if v := GetEnv("HEARTBEAT_INTERVAL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Heartbeat = d
		}
	}
	if v := GetEnv("HEARTBEAT_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HeartbeatTimeout = d
		}
	}
	if v := GetEnv("MAX_FRAME_BYTES", ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxFrameBytes = n
		}
	}
	if v := GetEnv("FIGMA_MCP_AUDIT_LOG_PATH", ""); v != "" {
		c.AuditLogPath = v
	}
	if v := GetEnv("MCP_TRANSPORT", ""); v != "" {
		c.MCPTransport = strings.ToLower(strings.TrimSpace(v))
	}
	if v := GetEnv("MCP_ADDR", ""); v != "" {
		c.MCPAddr = v
	}
	if v := GetEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
	if v := GetEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := GetEnv("DRAIN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DrainTimeout = d
		}
	}
}

// BindFlagsFromCurrent binds command line flags using the current config values as defaults.
func (c *BridgeConfig) BindFlagsFromCurrent(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "bridge config file path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log output on stderr (console, json)")
	fs.StringVar(&c.Host, "host", c.Host, "interface the plugin WebSocket listener binds to")
	fs.IntVar(&c.Port, "port", c.Port, "preferred plugin WebSocket port")
	fs.IntVar(&c.PortMax, "port-max", c.PortMax, "last port tried when the preferred port is in use")
	fs.Func("request-timeout", "seconds to wait for the plugin to answer a request", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.RequestTimeout = time.Duration(f * float64(time.Second))
		return nil
	})
	fs.StringVar(&c.PeerPolicy, "peer-policy", c.PeerPolicy, "what to do when a second plugin connects (reject, replace)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "interval between WebSocket pings to the plugin")
	fs.DurationVar(&c.HeartbeatTimeout, "heartbeat-timeout", c.HeartbeatTimeout, "time to wait for a pong before dropping the plugin")
	fs.Int64Var(&c.MaxFrameBytes, "max-frame-bytes", c.MaxFrameBytes, "largest inbound frame accepted from the plugin (-1 for unlimited)")
	fs.StringVar(&c.AuditLogPath, "audit-log", c.AuditLogPath, "append NDJSON audit events to this file; empty disables auditing")
	fs.StringVar(&c.MCPTransport, "mcp-transport", c.MCPTransport, "MCP transport for tool clients (stdio, http)")
	fs.StringVar(&c.MCPAddr, "mcp-addr", c.MCPAddr, "listen address for the streamable HTTP MCP transport")
	fs.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis connection URL for bridge status; empty keeps status in memory")
	fs.DurationVar(&c.DrainTimeout, "drain-timeout", c.DrainTimeout, "time allowed for servers to shut down")
}

// LoadFile populates the config from a YAML file. Fields already set remain unless
// overwritten by corresponding entries in the file.
func (c *BridgeConfig) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

// Validate reports the first invalid setting.
func (c *BridgeConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PortMax < c.Port || c.PortMax > 65535 {
		return fmt.Errorf("port-max %d must be between port %d and 65535", c.PortMax, c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	switch c.PeerPolicy {
	case PolicyReject, PolicyReplace:
	default:
		return fmt.Errorf("unknown peer policy %q", c.PeerPolicy)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	switch c.MCPTransport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unknown mcp transport %q", c.MCPTransport)
	}
	if c.Heartbeat < 0 || c.HeartbeatTimeout < 0 {
		return fmt.Errorf("heartbeat settings must not be negative")
	}
	return nil
}

func splitComma(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
