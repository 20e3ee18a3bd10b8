package batch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/eriflow/dbopen"
	"github.com/hazyhaar/eriflow/idgen"
	"github.com/hazyhaar/eriflow/locator"
	"github.com/hazyhaar/eriflow/sink"
	"github.com/hazyhaar/eriflow/store"
)

var testMCPImpl = &mcp.Implementation{Name: "eriflow-test", Version: "0.1.0"}

func mcpSession(t *testing.T, r *Runner, st *store.Store) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	r.RegisterMCP(srv, "", st)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err, "client connect")
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "CallTool(%s): expected TextContent", name)
	return tc.Text, result.IsError
}

func mcpRunner(t *testing.T) (*Runner, *store.Store) {
	t.Helper()
	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	r := New(Config{
		Sessions:   &fakeSessions{page: newPage(), ok: true},
		Sequencer:  &fakeSequencer{fail: map[int]string{1: locator.TypeCode}},
		Extractor:  fakeExtractor{},
		Journal:    sink.NewJournal(st, idgen.Sequence("run_")),
		NewBatchID: idgen.Sequence("bat_"),
		Now:        now,
	})
	return r, st
}

const (
	recA = "ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=All Industries - Diversified, Years of Experience=11, Mean"
	recB = "ERI Code=4007, ERI Location=Austin, Texas, Revenue=1000000, Industry=Retail, Years of Experience=3, Median"
)

func TestMCP_Lookup(t *testing.T) {
	r, st := mcpRunner(t)
	session := mcpSession(t, r, st)

	text, isErr := mcpCallTool(t, session, "eri_lookup", map[string]any{"records": []string{recA, recB}})
	require.False(t, isErr, "tool error: %s", text)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, "bat_1", resp.BatchID)
	require.True(t, resp.Authenticated)
	require.Len(t, resp.Results, 2)

	require.Equal(t, "success", resp.Results[0].Kind)
	require.Equal(t, "v4006", resp.Results[0].Value)

	require.Equal(t, "step_failure", resp.Results[1].Kind)
	require.Equal(t, locator.TypeCode, resp.Results[1].Step)
	require.Equal(t, "Not found", resp.Results[1].Value)
}

func TestMCP_LookupBadRecord(t *testing.T) {
	r, st := mcpRunner(t)
	session := mcpSession(t, r, st)

	_, isErr := mcpCallTool(t, session, "eri_lookup", map[string]any{"records": []string{"ERI Code=1"}})
	require.True(t, isErr, "expected tool error for a record without statistic")
}

func TestMCP_Results(t *testing.T) {
	r, st := mcpRunner(t)
	session := mcpSession(t, r, st)
	_, isErr := mcpCallTool(t, session, "eri_lookup", map[string]any{"records": []string{recA, recB}})
	require.False(t, isErr, "lookup failed")

	text, isErr := mcpCallTool(t, session, "eri_results", map[string]any{"batch_id": "bat_1"})
	require.False(t, isErr, "tool error: %s", text)
	var byBatch struct {
		Batch    store.Batch   `json:"batch"`
		Outcomes []store.Entry `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &byBatch))
	require.Equal(t, store.StatusDone, byBatch.Batch.Status)
	require.Len(t, byBatch.Outcomes, 2)

	text, _ = mcpCallTool(t, session, "eri_results", map[string]any{"code": "4006", "statistic": "Mean"})
	var byCode struct {
		Outcomes []store.Entry `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &byCode))
	require.Len(t, byCode.Outcomes, 1)
	require.Equal(t, "v4006", byCode.Outcomes[0].Value)

	text, _ = mcpCallTool(t, session, "eri_results", map[string]any{})
	var recent struct {
		Batches []store.Batch `json:"batches"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &recent))
	require.Len(t, recent.Batches, 1)
}
