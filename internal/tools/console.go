package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gaspardpetit/fmcp-bridge/internal/designtool"
)

func (t *Set) consoleTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("figma_get_console_logs",
				mcp.WithDescription("Get plugin console logs (log/warn/error) from the plugin buffer."),
				mcp.WithNumber("limit", mcp.DefaultNumber(50), mcp.Min(1), mcp.Max(200)),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				logs, err := t.client.GetConsoleLogs(ctx, clamp(req.GetInt("limit", 50), 1, 200))
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "logs": logs.Logs, "total": logs.Total}, nil
			}),
		},
		{
			Tool: mcp.NewTool("figma_watch_console",
				mcp.WithDescription("Collect new plugin console logs until the timeout by polling the plugin buffer."),
				mcp.WithNumber("timeoutSeconds", mcp.DefaultNumber(30), mcp.Min(1), mcp.Max(120)),
			),
			Handler: t.guarded(t.watchConsole),
		},
		{
			Tool: mcp.NewTool("figma_clear_console",
				mcp.WithDescription("Clear the plugin console log buffer."),
			),
			Handler: t.guarded(func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
				if err := t.client.ClearConsole(ctx); err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "message": "Console cleared"}, nil
			}),
		},
	}
}

func (t *Set) watchConsole(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	window := time.Duration(clamp(req.GetInt("timeoutSeconds", 30), 1, 120)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	seen := map[string]bool{}
	stream := make([]designtool.ConsoleEntry, 0)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		logs, err := t.client.GetConsoleLogs(ctx, 200)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return nil, err
		}
		for _, e := range logs.Logs {
			args, _ := json.Marshal(e.Args)
			key := fmt.Sprintf("%v-%s", e.Time, args)
			if !seen[key] {
				seen[key] = true
				stream = append(stream, e)
			}
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}
	return map[string]any{"success": true, "stream": stream, "count": len(stream)}, nil
}
