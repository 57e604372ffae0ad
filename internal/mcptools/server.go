// Package mcptools exposes the mutation engine as MCP tools so agents can
// reorder and inspect a forest over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/gesture"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/hierarchy"
	"github.com/agentic-research/arbor/internal/mutation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tools holds the engine the handlers act on. source, when set, backs the
// reload_forest tool.
type Tools struct {
	engine *mutation.Engine
	source mutation.SnapshotProvider
}

func New(e *mutation.Engine, source mutation.SnapshotProvider) *Tools {
	return &Tools{engine: e, source: source}
}

// NewServer builds an MCP server with every arbor tool registered.
func NewServer(e *mutation.Engine, source mutation.SnapshotProvider, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"arbor",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	New(e, source).Register(s)
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(e *mutation.Engine, source mutation.SnapshotProvider, version string) error {
	return server.ServeStdio(NewServer(e, source, version))
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(moveNodeTool(), t.HandleMoveNode)
	s.AddTool(moveToRootTool(), t.HandleMoveToRoot)
	s.AddTool(checkForestTool(), t.HandleCheckForest)
	s.AddTool(listForestTool(), t.HandleListForest)
	if t.source != nil {
		s.AddTool(reloadForestTool(), t.HandleReloadForest)
	}
}

const instructions = `arbor keeps a forest of ordered nodes. Use list_forest to see it,
move_node to reorder or reparent a node (either an explicit op or a drop
position over the target row), move_to_root to detach a node,
check_forest to verify the structure, and reload_forest after the store
changed underneath. Blocked moves are reported in the outcome, not as
tool errors.`

func moveNodeTool() mcp.Tool {
	return mcp.NewTool("move_node",
		mcp.WithDescription("Move a node before, after or under a target node. Give either op, or the drop position x/y within a target row of width/height."),
		mcp.WithString("dragged_id", mcp.Required(), mcp.Description("Node being moved")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Node dropped on")),
		mcp.WithString("op", mcp.Description("before, after or child"), mcp.Enum("before", "after", "child")),
		mcp.WithNumber("x", mcp.Description("Drop x relative to the target row")),
		mcp.WithNumber("y", mcp.Description("Drop y relative to the target row")),
		mcp.WithNumber("width", mcp.Description("Target row width")),
		mcp.WithNumber("height", mcp.Description("Target row height")),
	)
}

func moveToRootTool() mcp.Tool {
	return mcp.NewTool("move_to_root",
		mcp.WithDescription("Detach a node and append it after all roots."),
		mcp.WithString("dragged_id", mcp.Required(), mcp.Description("Node being moved")),
	)
}

func checkForestTool() mcp.Tool {
	return mcp.NewTool("check_forest",
		mcp.WithDescription("Report cycles, dangling parents and stale levels."),
	)
}

func listForestTool() mcp.Tool {
	return mcp.NewTool("list_forest",
		mcp.WithDescription("List nodes as JSON records. With root_id, only that node and its subtree."),
		mcp.WithString("root_id", mcp.Description("Restrict the listing to this subtree")),
	)
}

func reloadForestTool() mcp.Tool {
	return mcp.NewTool("reload_forest",
		mcp.WithDescription("Re-read the forest from the store, discarding nothing that was committed."),
	)
}

func (t *Tools) HandleMoveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dragged, err := req.RequireString("dragged_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var res *mutation.Result
	if opName := req.GetString("op", ""); opName != "" {
		op, err := hierarchy.ParseOp(opName)
		if err != nil || op == hierarchy.Root {
			return mcp.NewToolResultError(fmt.Sprintf("op must be before, after or child, got %q", opName)), nil
		}
		res, err = t.engine.Move(ctx, op, dragged, target)
		return outcomeResult(res, err)
	}

	g := gesture.Gesture{
		DraggedID: dragged,
		TargetID:  target,
		X:         req.GetFloat("x", 0),
		Y:         req.GetFloat("y", 0),
		Width:     req.GetFloat("width", 0),
		Height:    req.GetFloat("height", 0),
	}
	res, err = t.engine.Apply(ctx, g)
	return outcomeResult(res, err)
}

func (t *Tools) HandleMoveToRoot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dragged, err := req.RequireString("dragged_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := t.engine.MoveToRoot(ctx, dragged)
	return outcomeResult(res, err)
}

// CheckReport is the check_forest payload.
type CheckReport struct {
	OK         bool     `json:"ok"`
	Nodes      int      `json:"nodes"`
	Cycles     []string `json:"cycles,omitempty"`
	Orphans    []string `json:"orphans,omitempty"`
	DepthDrift []string `json:"depth_drift,omitempty"`
}

func (t *Tools) HandleCheckForest(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := t.engine.Forest()
	report := CheckReport{OK: true, Nodes: f.Len()}
	if err := f.Check(); err != nil {
		var ie *graph.InvariantError
		if !errors.As(err, &ie) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		report.OK = false
		report.Cycles = ie.Cycles
		report.Orphans = ie.Orphans
		report.DepthDrift = ie.DepthDrift
	}
	return jsonResult(report)
}

func (t *Tools) HandleListForest(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rootID := req.GetString("root_id", "")
	if rootID == "" {
		return jsonResult(t.engine.Snapshot())
	}

	f := t.engine.Forest()
	root, err := f.Get(rootID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("root %s: %v", rootID, err)), nil
	}
	records := []api.NodeRecord{root.Record()}
	for _, d := range f.Descendants(rootID) {
		n, err := f.Get(d.ID)
		if err != nil {
			continue
		}
		records = append(records, n.Record())
	}
	return jsonResult(records)
}

func (t *Tools) HandleReloadForest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.source == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	if err := t.engine.Reload(ctx, t.source); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]int{"nodes": t.engine.Forest().Len()})
}

// outcomeResult reports blocked and failed moves inside the outcome so the
// caller can branch on Reason.
func outcomeResult(res *mutation.Result, err error) (*mcp.CallToolResult, error) {
	return jsonResult(mutation.OutcomeOf(res, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
