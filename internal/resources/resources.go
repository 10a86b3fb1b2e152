// Package resources implements MCP resource handlers for the bridge.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (ableton://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mparcell123/Ableton-MCP/internal/config"
)

// Handler manages bridge resource endpoints.
type Handler struct {
	cfg  config.Config
	ping func(ctx context.Context) bool
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(cfg config.Config, ping func(ctx context.Context) bool) *Handler {
	return &Handler{cfg: cfg, ping: ping}
}

// status is the payload served at ableton://bridge/status.
type status struct {
	Ready  bool          `json:"ready"`
	Config config.Config `json:"config"`
}

// StatusResource returns the MCP resource definition for bridge status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"ableton://bridge/status",
		"Ableton Bridge Status",
		mcp.WithResourceDescription("Gateway reachability and the effective bridge configuration"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current bridge status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload := status{
		Ready:  h.ping(ctx),
		Config: h.cfg,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
