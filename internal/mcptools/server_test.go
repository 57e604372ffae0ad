package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agentic-research/arbor/api"
	"github.com/agentic-research/arbor/internal/graph"
	"github.com/agentic-research/arbor/internal/mutation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTools(t *testing.T, gw mutation.Gateway) (*Tools, *mutation.Engine) {
	t.Helper()
	f, err := graph.Load([]api.NodeRecord{
		{ID: "A", Level: 0, Order: 1},
		{ID: "B", Level: 0, Order: 2},
		{ID: "C", ParentID: "A", Level: 1, Order: 1},
	})
	require.NoError(t, err)
	if gw == nil {
		gw = mutation.GatewayFunc(func(context.Context, []api.Change) error { return nil })
	}
	e := mutation.New(f, gw, mutation.Options{})
	return New(e, nil), e
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func decodeOutcome(t *testing.T, res *mcp.CallToolResult) api.Outcome {
	t.Helper()
	var out api.Outcome
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestMoveNode_ExplicitOp(t *testing.T) {
	tools, e := newTools(t, nil)

	res, err := tools.HandleMoveNode(context.Background(), callRequest(map[string]any{
		"dragged_id": "B", "target_id": "A", "op": "child",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := decodeOutcome(t, res)
	assert.True(t, out.Applied)
	assert.Equal(t, []string{"B"}, out.ChangedIDs)

	b, err := e.Forest().Get("B")
	require.NoError(t, err)
	assert.Equal(t, "A", b.ParentID)
	assert.Equal(t, 1, b.Level)
}

func TestMoveNode_Gesture(t *testing.T) {
	tools, e := newTools(t, nil)

	// Top band of A's row: B goes before A.
	res, err := tools.HandleMoveNode(context.Background(), callRequest(map[string]any{
		"dragged_id": "B", "target_id": "A",
		"x": 10.0, "y": 2.0, "width": 200.0, "height": 20.0,
	}))
	require.NoError(t, err)
	assert.True(t, decodeOutcome(t, res).Applied)

	roots := e.Forest().Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "B", roots[0].ID)
}

func TestMoveNode_BlockedIsAnOutcome(t *testing.T) {
	tools, _ := newTools(t, nil)

	res, err := tools.HandleMoveNode(context.Background(), callRequest(map[string]any{
		"dragged_id": "A", "target_id": "C", "op": "child",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := decodeOutcome(t, res)
	assert.False(t, out.Applied)
	assert.Equal(t, api.ReasonCycleDetected, out.Reason)
}

func TestMoveNode_PersistenceFailure(t *testing.T) {
	gw := mutation.GatewayFunc(func(context.Context, []api.Change) error {
		return errors.New("connection reset")
	})
	tools, e := newTools(t, gw)

	res, err := tools.HandleMoveNode(context.Background(), callRequest(map[string]any{
		"dragged_id": "B", "target_id": "A", "op": "child",
	}))
	require.NoError(t, err)

	out := decodeOutcome(t, res)
	assert.Equal(t, api.ReasonPersistenceError, out.Reason)
	assert.Equal(t, string(mutation.NetworkFailure), out.Kind)

	b, err := e.Forest().Get("B")
	require.NoError(t, err)
	assert.Empty(t, b.ParentID)
}

func TestMoveNode_BadArguments(t *testing.T) {
	tools, _ := newTools(t, nil)
	ctx := context.Background()

	res, err := tools.HandleMoveNode(ctx, callRequest(map[string]any{"target_id": "A"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tools.HandleMoveNode(ctx, callRequest(map[string]any{
		"dragged_id": "B", "target_id": "A", "op": "sideways",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tools.HandleMoveNode(ctx, callRequest(map[string]any{
		"dragged_id": "B", "target_id": "A", "op": "root",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMoveToRoot(t *testing.T) {
	tools, e := newTools(t, nil)

	res, err := tools.HandleMoveToRoot(context.Background(), callRequest(map[string]any{"dragged_id": "C"}))
	require.NoError(t, err)
	assert.True(t, decodeOutcome(t, res).Applied)

	c, err := e.Forest().Get("C")
	require.NoError(t, err)
	assert.True(t, c.IsRoot())
	assert.Equal(t, 0, c.Level)
	assert.Equal(t, 2.5, c.Order)
}

func TestMoveToRoot_UnknownNode(t *testing.T) {
	tools, _ := newTools(t, nil)

	res, err := tools.HandleMoveToRoot(context.Background(), callRequest(map[string]any{"dragged_id": "Z"}))
	require.NoError(t, err)
	assert.Equal(t, api.ReasonNotFound, decodeOutcome(t, res).Reason)
}

func TestCheckForest(t *testing.T) {
	tools, e := newTools(t, nil)

	res, err := tools.HandleCheckForest(context.Background(), callRequest(nil))
	require.NoError(t, err)
	var report CheckReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.True(t, report.OK)
	assert.Equal(t, 3, report.Nodes)

	e.Forest().Add(&graph.Node{ID: "D", ParentID: "ghost"})
	res, err = tools.HandleCheckForest(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.False(t, report.OK)
	assert.Equal(t, []string{"D"}, report.Orphans)
}

func TestListForest(t *testing.T) {
	tools, _ := newTools(t, nil)
	ctx := context.Background()

	res, err := tools.HandleListForest(ctx, callRequest(nil))
	require.NoError(t, err)
	var all []api.NodeRecord
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &all))
	assert.Len(t, all, 3)

	res, err = tools.HandleListForest(ctx, callRequest(map[string]any{"root_id": "A"}))
	require.NoError(t, err)
	var sub []api.NodeRecord
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &sub))
	require.Len(t, sub, 2)
	assert.Equal(t, "A", sub[0].ID)
	assert.Equal(t, "C", sub[1].ID)

	res, err = tools.HandleListForest(ctx, callRequest(map[string]any{"root_id": "Z"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

type staticSource []api.NodeRecord

func (s staticSource) LoadForest(context.Context) ([]api.NodeRecord, error) { return s, nil }

func TestReloadForest(t *testing.T) {
	_, e := newTools(t, nil)
	tools := New(e, staticSource{{ID: "X", Order: 1}, {ID: "Y", ParentID: "X", Level: 1, Order: 1}})

	res, err := tools.HandleReloadForest(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes": 2}`, resultText(t, res))

	_, err = e.Forest().Get("A")
	assert.ErrorIs(t, err, graph.ErrNotFound)
	y, err := e.Forest().Get("Y")
	require.NoError(t, err)
	assert.Equal(t, "X", y.ParentID)
}

func TestReloadForest_NoSource(t *testing.T) {
	tools, _ := newTools(t, nil)
	res, err := tools.HandleReloadForest(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServer(t *testing.T) {
	_, e := newTools(t, nil)
	assert.NotNil(t, NewServer(e, staticSource{}, "test"))
}
