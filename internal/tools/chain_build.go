package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mparcell123/Ableton-MCP/internal/engine"
)

// ChainBuildTool handles the chain_build MCP tool: insert a sequence of
// devices on a track, position them, and set their parameters in one call.
type ChainBuildTool struct {
	deps Deps
}

// NewChainBuildTool creates a ChainBuildTool.
func NewChainBuildTool(deps Deps) *ChainBuildTool {
	return &ChainBuildTool{deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *ChainBuildTool) Definition() mcp.Tool {
	return mcp.NewTool("chain_build",
		mcp.WithDescription(
			"Build an audio effect chain on a track in Ableton Live. Each step names a device "+
				"(aliases like 'eq8' work), optionally positions it relative to existing devices, "+
				"and applies parameter updates. Parameters accept loose names ('band 3 gain'), "+
				"normalized values, display-value targets with units ('8000 hz'), or display "+
				"text ('High Shelf'). Steps execute in order and stop at the first structural "+
				"failure; work already done is kept.",
		),
		mcp.WithArray("steps",
			mcp.Required(),
			mcp.Description(
				"Build steps, each an object: device_name (required), position "+
					"{placement: before|after, relative_device_name, relative_device_index}, "+
					"insert_index, parameter_updates [{param_name|param_index, "+
					"value|target_display_value+target_unit|target_display_text, fallback_value}].",
			),
			mcp.Items(map[string]any{"type": "object"}),
		),
		mcp.WithObject("track",
			mcp.Description(
				"Target track selector: {track_index} or {track_name} or "+
					"{use_selected_track: true}. Defaults to the selected track.",
			),
		),
	)
}

// Handle processes the chain_build tool call.
func (t *ChainBuildTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Steps []engine.Step          `json:"steps"`
		Track *engine.TargetSelector `json:"track"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	for si, step := range args.Steps {
		for ui, update := range step.ParameterUpdates {
			if n := valueModeCount(update); n != 1 {
				return resultJSON(malformed(engine.KindMalformedStep,
					"step %d parameter_update %d: exactly one of value, target_display_value, target_display_text required (got %d)",
					si, ui, n))
			}
		}
	}

	res := t.deps.engine(ctx).BuildChain(args.Steps, args.Track)
	return resultJSON(res)
}
