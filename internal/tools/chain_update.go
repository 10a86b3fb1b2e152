package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mparcell123/Ableton-MCP/internal/engine"
)

// ChainUpdateTool handles the chain_update_params MCP tool: edit parameters
// on devices that are already on a track.
type ChainUpdateTool struct {
	deps Deps
}

// NewChainUpdateTool creates a ChainUpdateTool.
func NewChainUpdateTool(deps Deps) *ChainUpdateTool {
	return &ChainUpdateTool{deps: deps}
}

// Definition returns the MCP tool definition for registration.
func (t *ChainUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("chain_update_params",
		mcp.WithDescription(
			"Update parameters on devices already present on a track in Ableton Live. "+
				"Each update selects a device by device_index, or by device_name with an "+
				"optional device_occurrence when several devices share the name. Parameter "+
				"updates use the same loose matching and value modes as chain_build.",
		),
		mcp.WithArray("updates",
			mcp.Required(),
			mcp.Description(
				"Update items, each an object: device_name (with optional "+
					"device_occurrence) or device_index, plus parameter_updates.",
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

// Handle processes the chain_update_params tool call.
func (t *ChainUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Updates []engine.UpdateItem    `json:"updates"`
		Track   *engine.TargetSelector `json:"track"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	for ii, item := range args.Updates {
		for ui, update := range item.ParameterUpdates {
			if n := valueModeCount(update); n != 1 {
				return resultJSON(malformed(engine.KindMalformedUpdate,
					"update %d parameter_update %d: exactly one of value, target_display_value, target_display_text required (got %d)",
					ii, ui, n))
			}
		}
	}

	res := t.deps.engine(ctx).UpdateParameters(args.Updates, args.Track)
	return resultJSON(res)
}
