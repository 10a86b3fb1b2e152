// Package tools implements the MCP tool surface of the bridge: chain_build,
// chain_update_params, chain_inspect and bridge_health. Each tool binds its
// arguments, runs the resolution engine against a request-scoped view of the
// host object graph, and returns the result envelope as JSON.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/mparcell123/Ableton-MCP/internal/engine"
	"github.com/mparcell123/Ableton-MCP/internal/live"
)

// Deps carries the shared dependencies of the chain tools. NewSong yields a
// request-scoped object graph view so gateway round trips inherit the tool
// call's context.
type Deps struct {
	NewSong func(ctx context.Context) live.Song
	Log     *logrus.Logger
	Traces  engine.TraceSink
	Options engine.Options
}

func (d Deps) engine(ctx context.Context) *engine.Engine {
	return engine.New(d.NewSong(ctx), d.Log, d.Traces, d.Options)
}

// resultJSON renders a result envelope. Failures are envelopes too: the
// partial work and error kind travel in the same JSON shape as success.
func resultJSON(res engine.Result) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// malformed builds a failure envelope for argument-shape violations caught
// before the engine runs.
func malformed(kind engine.Kind, format string, args ...any) engine.Result {
	return engine.Result{
		OK:        false,
		ErrorKind: kind,
		Message:   fmt.Sprintf(format, args...),
		Warnings:  []string{},
	}
}

// valueModeCount counts how many of the three value modes an update sets.
// Exactly one is legal.
func valueModeCount(u engine.ParameterUpdate) int {
	n := 0
	if u.Value != nil {
		n++
	}
	if u.TargetDisplayValue != nil {
		n++
	}
	if u.TargetDisplayText != nil {
		n++
	}
	return n
}
