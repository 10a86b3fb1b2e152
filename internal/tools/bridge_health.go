package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mparcell123/Ableton-MCP/internal/trace"
)

// HealthReport is the bridge_health response payload.
type HealthReport struct {
	Ready       bool         `json:"ready"`
	GatewayHost string       `json:"gateway_host"`
	GatewayPort int          `json:"gateway_port"`
	TraceStats  *trace.Stats `json:"trace_stats,omitempty"`
}

// BridgeHealthTool handles the bridge_health MCP tool: is the remote-script
// gateway reachable, and what has resolution tracing seen so far.
type BridgeHealthTool struct {
	ping   func(ctx context.Context) bool
	host   string
	port   int
	traces *trace.Store
}

// NewBridgeHealthTool creates a BridgeHealthTool. traces may be nil when the
// trace store is disabled.
func NewBridgeHealthTool(ping func(ctx context.Context) bool, host string, port int, traces *trace.Store) *BridgeHealthTool {
	return &BridgeHealthTool{ping: ping, host: host, port: port, traces: traces}
}

// Definition returns the MCP tool definition for registration.
func (t *BridgeHealthTool) Definition() mcp.Tool {
	return mcp.NewTool("bridge_health",
		mcp.WithDescription(
			"Check whether the Ableton Live remote-script gateway is reachable. "+
				"Reports the configured endpoint and, when tracing is enabled, how many "+
				"parameter resolutions each matching tier has handled.",
		),
	)
}

// Handle processes the bridge_health tool call.
func (t *BridgeHealthTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := HealthReport{
		Ready:       t.ping(ctx),
		GatewayHost: t.host,
		GatewayPort: t.port,
	}
	if t.traces != nil {
		if stats, err := t.traces.TierStats(); err == nil {
			report.TraceStats = &stats
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding health report: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
