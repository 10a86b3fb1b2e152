// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it loads configuration, builds the gateway
// client, trace store and logger, and injects them into the tools that
// depend on abstractions. No resolution logic lives here, only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/mparcell123/Ableton-MCP/internal/config"
	"github.com/mparcell123/Ableton-MCP/internal/engine"
	"github.com/mparcell123/Ableton-MCP/internal/gateway"
	"github.com/mparcell123/Ableton-MCP/internal/live"
	"github.com/mparcell123/Ableton-MCP/internal/prompts"
	"github.com/mparcell123/Ableton-MCP/internal/resources"
	"github.com/mparcell123/Ableton-MCP/internal/tools"
	"github.com/mparcell123/Ableton-MCP/internal/trace"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all chain tools
// registered. configPath may be empty; defaults and environment variables
// apply either way.
//
// The returned cleanup function closes the trace store's database
// connection and must be called on shutdown (typically via defer). It is
// always non-nil and safe to call even if trace init failed.
func New(configPath string) (*server.MCPServer, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, noop, err
	}

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	client := gateway.NewClient(cfg.GatewayHost, cfg.GatewayPort, cfg.GatewayTimeout(), log)

	// Tracing is an independent subsystem: if the database cannot be
	// opened, chain tools keep working and resolutions go unrecorded.
	cleanup := noop
	var sink engine.TraceSink = engine.NopSink{}
	traceStore, traceErr := trace.New(cfg.TraceDBPath, log)
	if traceErr != nil {
		log.WithError(traceErr).Warn("resolution tracing disabled")
		traceStore = nil
	} else {
		sink = traceStore
		cleanup = func() {
			if err := traceStore.Close(); err != nil {
				log.WithError(err).Warn("trace store close")
			}
		}
	}

	s := server.NewMCPServer(
		"ableton-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	deps := tools.Deps{
		NewSong: func(ctx context.Context) live.Song {
			return gateway.NewSong(ctx, client)
		},
		Log:    log,
		Traces: sink,
		Options: engine.Options{
			PollAttempts: cfg.PollAttempts,
			PollInterval: cfg.PollInterval(),
		},
	}

	buildTool := tools.NewChainBuildTool(deps)
	s.AddTool(buildTool.Definition(), buildTool.Handle)

	updateTool := tools.NewChainUpdateTool(deps)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	inspectTool := tools.NewChainInspectTool(deps)
	s.AddTool(inspectTool.Definition(), inspectTool.Handle)

	healthTool := tools.NewBridgeHealthTool(client.Ping, cfg.GatewayHost, cfg.GatewayPort, traceStore)
	s.AddTool(healthTool.Definition(), healthTool.Handle)

	workflowPrompt := prompts.NewWorkflowPrompt()
	s.AddPrompt(workflowPrompt.Definition(), workflowPrompt.Handle)

	resourceHandler := resources.NewHandler(cfg, client.Ping)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when tracing is
// disabled or hasn't been initialized.
func noop() {}

func serverInstructions() string {
	return fmt.Sprintf(
		"Ableton Live chain building bridge (v%s).\n\n"+
			"Tools operate on the Live set through a remote-script gateway:\n"+
			"- chain_build: insert devices on a track, position them and set parameters in one call.\n"+
			"- chain_update_params: edit parameters on devices already in a chain.\n"+
			"- chain_inspect: list a track's devices, optionally with every parameter's name,\n"+
			"  range, value and display string.\n"+
			"- bridge_health: check gateway reachability before driving the other tools.\n\n"+
			"Device and parameter names are matched loosely: aliases like 'eq8', band shorthand\n"+
			"like 'band 3 gain', and display targets like '8000 hz' or 'High Shelf' all resolve.\n"+
			"Prefer chain_inspect to discover exact names when a parameter fails to match.",
		Version,
	)
}
