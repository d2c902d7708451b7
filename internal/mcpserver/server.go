// Package mcpserver publishes the figma tool set to MCP clients over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"io"
	stdlog "log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sdkserver "github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/fmcp-bridge/internal/logx"
	"github.com/gaspardpetit/fmcp-bridge/internal/tools"
)

// Name is reported to MCP clients during initialize.
const Name = "fmcp-bridge"

// New builds an MCP server exposing every tool in set.
func New(version string, set *tools.Set) *sdkserver.MCPServer {
	srv := sdkserver.NewMCPServer(
		Name,
		version,
		sdkserver.WithResourceCapabilities(false, false),
		sdkserver.WithToolCapabilities(false),
		sdkserver.WithPromptCapabilities(false),
		sdkserver.WithRecovery(),
	)
	set.Register(srv)
	return srv
}

// ServeStdio runs the line-delimited JSON-RPC transport until ctx ends or in
// is closed.
func ServeStdio(ctx context.Context, srv *sdkserver.MCPServer, in io.Reader, out io.Writer) error {
	stdio := sdkserver.NewStdioServer(srv)
	stdio.SetErrorLogger(stdlog.New(logx.Log, "mcp: ", 0))
	return stdio.Listen(ctx, in, out)
}

// NewHandler mounts the streamable HTTP transport at /mcp.
func NewHandler(srv *sdkserver.MCPServer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/mcp", sdkserver.NewStreamableHTTPServer(
		srv,
		sdkserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return ctx
		}),
	))
	return r
}

// NewHTTPServer returns an http.Server for the streamable transport on addr.
func NewHTTPServer(addr string, srv *sdkserver.MCPServer) *http.Server {
	return &http.Server{Addr: addr, Handler: NewHandler(srv)}
}
