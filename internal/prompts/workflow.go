// Package prompts implements MCP prompt handlers for the bridge.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which the
// AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// WorkflowPrompt handles the chain-workflow MCP prompt. It guides the AI
// through the safe order of operations: health check, inspect, build.
type WorkflowPrompt struct{}

// NewWorkflowPrompt creates a WorkflowPrompt.
func NewWorkflowPrompt() *WorkflowPrompt {
	return &WorkflowPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *WorkflowPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("chain-workflow",
		mcp.WithPromptDescription(
			"Build an audio effect chain in Ableton Live from a natural-language "+
				"description. Checks the gateway, inspects the target track, then "+
				"builds and verifies the chain.",
		),
		mcp.WithArgument("description",
			mcp.ArgumentDescription("What the chain should do, e.g. 'clean up the vocal bus with an EQ and gentle compression'"),
		),
		mcp.WithArgument("track",
			mcp.ArgumentDescription("Track name or index to build on. Default: the selected track"),
		),
	)
}

// Handle processes the chain-workflow prompt request.
func (p *WorkflowPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	description := "the chain the user described"
	track := "the selected track"
	if args := req.Params.Arguments; args != nil {
		if d, ok := args["description"]; ok && d != "" {
			description = d
		}
		if tr, ok := args["track"]; ok && tr != "" {
			track = fmt.Sprintf("track %q", tr)
		}
	}

	text := fmt.Sprintf(
		"Build this effect chain in Ableton Live: %s, on %s.\n\n"+
			"Follow this sequence:\n\n"+
			"1. Call bridge_health. If the gateway is not ready, stop and tell the user "+
			"to check that Live is running with the gateway remote script enabled.\n"+
			"2. Call chain_inspect on the target track with include_parameters=false to "+
			"see what is already there.\n"+
			"3. Call chain_build with one step per device, in signal-flow order. Use "+
			"device aliases freely (eq8, compressor, glue compressor, limiter). Set "+
			"parameters in the same call: prefer target_display_value with a unit for "+
			"frequencies and times, target_display_text for switches like filter types, "+
			"and value only for normalized amounts.\n"+
			"4. Check the result envelope: report unmatched_parameters honestly, and on "+
			"a failed step tell the user what was built before the failure (nothing is "+
			"rolled back).\n"+
			"5. Call chain_inspect again with include_parameters=true on the touched "+
			"devices if the user wants to verify the final settings.",
		description, track,
	)

	return &mcp.GetPromptResult{
		Description: "Chain building workflow",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
