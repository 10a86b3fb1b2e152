package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mparcell123/Ableton-MCP/internal/engine"
)

// ChainInspectTool handles the chain_inspect MCP tool: a read-only snapshot
// of a track's device chain.
type ChainInspectTool struct {
	deps Deps
}

// NewChainInspectTool creates a ChainInspectTool.
func NewChainInspectTool(deps Deps) *ChainInspectTool {
	return &ChainInspectTool{deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *ChainInspectTool) Definition() mcp.Tool {
	return mcp.NewTool("chain_inspect",
		mcp.WithDescription(
			"Inspect the device chain on a track in Ableton Live: device names, classes "+
				"and positions, optionally with every parameter's range, current value and "+
				"display string. Use this to discover exact parameter names before updating.",
		),
		mcp.WithObject("track",
			mcp.Description(
				"Target track selector: {track_index} or {track_name} or "+
					"{use_selected_track: true}. Defaults to the selected track.",
			),
		),
		mcp.WithBoolean("include_parameters",
			mcp.Description("Include full parameter listings per device. Defaults to false."),
		),
	)
}

// Handle processes the chain_inspect tool call.
func (t *ChainInspectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Track             *engine.TargetSelector `json:"track"`
		IncludeParameters bool                   `json:"include_parameters"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	res := t.deps.engine(ctx).InspectChain(args.Track, args.IncludeParameters)
	return resultJSON(res)
}
