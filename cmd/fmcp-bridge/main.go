package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/gaspardpetit/fmcp-bridge/internal/audit"
	"github.com/gaspardpetit/fmcp-bridge/internal/bridge"
	"github.com/gaspardpetit/fmcp-bridge/internal/bridgesrv"
	"github.com/gaspardpetit/fmcp-bridge/internal/config"
	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
	"github.com/gaspardpetit/fmcp-bridge/internal/logx"
	"github.com/gaspardpetit/fmcp-bridge/internal/mcpserver"
	"github.com/gaspardpetit/fmcp-bridge/internal/metrics"
	"github.com/gaspardpetit/fmcp-bridge/internal/secret"
	"github.com/gaspardpetit/fmcp-bridge/internal/serverstate"
	"github.com/gaspardpetit/fmcp-bridge/internal/tools"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

// errClientGone ends the process when the stdio MCP client hangs up.
var errClientGone = errors.New("mcp client disconnected")

func main() {
	cfg, showVersion, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("fmcp-bridge version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	if cfg.LogFormat == config.LogFormatJSON {
		logx.ConfigureJSON(cfg.LogLevel, os.Stderr)
	} else {
		logx.Configure(cfg.LogLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Log.Info().Dur("timeout", cfg.DrainTimeout).Msg("draining; send SIGTERM again to terminate immediately")
		cancel()
		<-sigCh
		logx.Log.Warn().Msg("termination requested")
		os.Exit(1)
	}()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		logx.Log.Fatal().Err(err).Msg("bridge stopped")
	}
}

// loadConfig resolves settings with precedence defaults < file < env < args.
func loadConfig(args []string) (config.BridgeConfig, bool, error) {
	var cfg config.BridgeConfig
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if p := configArg(args); p != "" {
		cfg.ConfigFile = p
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, false, fmt.Errorf("load config %s: %w", cfg.ConfigFile, err)
		}
	}
	cfg.ApplyEnv()

	fs := flag.NewFlagSet("fmcp-bridge", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	cfg.BindFlagsFromCurrent(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "fmcp-bridge version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if *showVersion {
		return cfg, true, nil
	}
	return cfg, false, cfg.Validate()
}

// configArg finds --config before flags are bound so the file can be loaded
// underneath env and args.
func configArg(args []string) string {
	for i, a := range args {
		a = "-" + strings.TrimLeft(a, "-")
		if a == "-config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, "-config=") {
			return strings.TrimPrefix(a, "-config=")
		}
	}
	return ""
}

func run(ctx context.Context, cfg config.BridgeConfig, stdin io.Reader, stdout io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	auditLog, err := audit.Open(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer func() { _ = auditLog.Close() }()

	tracker := serverstate.NewTracker(nil)
	var srv *bridgesrv.Server
	b := bridge.New(bridge.Options{
		Version:  version,
		Timeout:  cfg.RequestTimeout,
		Policy:   bridge.Policy(cfg.PeerPolicy),
		Audit:    auditLog,
		OnChange: func(s bridge.Snapshot) { srv.OnBridgeChange(s) },
	})
	srv = bridgesrv.New(cfg, b, tracker, reg)

	port, err := srv.Listen(ctx)
	if err != nil {
		var conflict *bridgesrv.PortConflictError
		if errors.As(err, &conflict) {
			logx.Log.Error().Msg(conflict.Hint())
		}
		return err
	}
	if cfg.RedisAddr != "" {
		rs, err := serverstate.NewRedisStore(ctx, cfg.RedisAddr, serverstate.Key(port))
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", secret.RedactURL(cfg.RedisAddr), err)
		}
		defer func() { _ = rs.Close() }()
		tracker.UseStore(rs)
		logx.Log.Info().Str("addr", secret.RedactURL(cfg.RedisAddr)).Str("key", serverstate.Key(port)).Msg("using redis state store")
	}

	mcp := mcpserver.New(version, tools.New(designtool.New(b, cfg.RequestTimeout), b.Snapshot))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		<-gctx.Done()
		tracker.StartDrain()
		b.Close()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	switch cfg.MCPTransport {
	case config.TransportHTTP:
		hs := mcpserver.NewHTTPServer(cfg.MCPAddr, mcp)
		g.Go(func() error {
			logx.Log.Info().Str("addr", cfg.MCPAddr).Msg("mcp streamable http listening")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	default:
		g.Go(func() error {
			err := mcpserver.ServeStdio(gctx, mcp, stdin, stdout)
			if gctx.Err() != nil {
				return nil
			}
			if err != nil {
				logx.Log.Debug().Err(err).Msg("stdio transport ended")
			}
			return errClientGone
		})
	}

	logx.Log.Info().Int("port", port).Str("version", version).Str("mcp_transport", cfg.MCPTransport).Msg("bridge starting")
	if err := g.Wait(); err != nil && !errors.Is(err, errClientGone) {
		return err
	}
	logx.Log.Info().Msg("bridge stopped")
	return nil
}
