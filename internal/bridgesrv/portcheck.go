package bridgesrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/gaspardpetit/fmcp-bridge/internal/logx"
)

// Banner is served on plain HTTP GET / so a probe can tell a bridge apart
// from any other program holding the port.
const Banner = "F-MCP Bridge (connect via WebSocket)"

const bannerMarker = "F-MCP"

// PortConflictError reports that no port in the configured range was free.
// The diagnostics describe the first port tried.
type PortConflictError struct {
	Port int
	Last int
	// Bridge is set when another bridge instance answered the probe.
	Bridge  bool
	PID     int32
	Process string
}

func (e *PortConflictError) Error() string {
	var b strings.Builder
	if e.Last > e.Port {
		fmt.Fprintf(&b, "ports %d-%d are all in use", e.Port, e.Last)
	} else {
		fmt.Fprintf(&b, "port %d is already in use", e.Port)
	}
	if e.Bridge {
		b.WriteString(" (another F-MCP bridge instance is running)")
	}
	if e.PID != 0 {
		fmt.Fprintf(&b, "; held by pid %d", e.PID)
		if e.Process != "" {
			fmt.Fprintf(&b, " (%s)", e.Process)
		}
	}
	fmt.Fprintf(&b, "; find it with: %s", e.Hint())
	return b.String()
}

// Hint returns the shell command that lists the owner of the port.
func (e *PortConflictError) Hint() string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("netstat -ano | findstr :%d", e.Port)
	}
	return fmt.Sprintf("lsof -i :%d", e.Port)
}

// listenRange binds the first free port in [from, to].
func listenRange(ctx context.Context, host string, from, to int) (net.Listener, int, error) {
	if to < from {
		to = from
	}
	log := logx.Component("bridgesrv")
	var lc net.ListenConfig
	var conflict *PortConflictError
	for port := from; port <= to; port++ {
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			if port != from {
				log.Warn().Int("preferred", from).Int("port", port).Msg("preferred port busy; using fallback")
			}
			return ln, port, nil
		}
		if !isAddrInUse(err) {
			return nil, 0, fmt.Errorf("listen %s:%d: %w", host, port, err)
		}
		if conflict == nil {
			conflict = diagnose(ctx, host, port)
			log.Warn().Err(conflict).Msg("port busy")
		} else {
			log.Debug().Int("port", port).Msg("port busy")
		}
	}
	conflict.Last = to
	return nil, 0, conflict
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address already in use") || strings.Contains(msg, "only one usage of each socket address")
}

func diagnose(ctx context.Context, host string, port int) *PortConflictError {
	e := &PortConflictError{Port: port, Last: port}
	e.Bridge = probeBanner(ctx, host, port)
	e.PID, e.Process = portOwner(ctx, port)
	return e
}

// probeBanner reports whether the listener on port answers with the bridge
// banner.
func probeBanner(ctx context.Context, host string, port int) bool {
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+net.JoinHostPort(host, strconv.Itoa(port))+"/", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.Contains(string(body), bannerMarker)
}

// portOwner looks up the process listening on port. It returns zero values
// when the platform does not expose socket ownership.
func portOwner(ctx context.Context, port int) (int32, string) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, ""
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) || c.Pid == 0 {
			continue
		}
		p, err := process.NewProcessWithContext(ctx, c.Pid)
		if err != nil {
			return c.Pid, ""
		}
		name, _ := p.NameWithContext(ctx)
		return c.Pid, name
	}
	return 0, ""
}
