package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/eriflow/kit"
	"github.com/hazyhaar/eriflow/record"
	"github.com/hazyhaar/eriflow/store"
)

// RegisterMCP registers the eri_lookup tool (runs records through the
// runner) and, when st is non-nil, the eri_results tool (reads the
// journal).
func (r *Runner) RegisterMCP(srv *mcp.Server, credentialStorePath string, st *store.Store) {
	r.registerLookupTool(srv, credentialStorePath)
	if st != nil {
		registerResultsTool(srv, st, r.cfg.Logger)
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- eri_lookup ---

type lookupReq struct {
	Records []string `json:"records"`
}

// LookupItem is the outcome of one looked-up record.
type LookupItem struct {
	Index  int    `json:"index"`
	Record string `json:"record"`
	Kind   string `json:"kind"`
	Value  string `json:"value"`
	Step   string `json:"step,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// LookupResponse is the result of Lookup.
type LookupResponse struct {
	BatchID       string       `json:"batch_id"`
	Authenticated bool         `json:"authenticated"`
	Results       []LookupItem `json:"results"`
	// Error reports a batch-level failure (abort, authentication, sink);
	// the results gathered before it are still listed.
	Error string `json:"error,omitempty"`
}

// Lookup parses records in the key=value grammar and runs them as one
// batch. Parse errors fail the call; batch errors are reported in the
// response.
func (r *Runner) Lookup(ctx context.Context, lines []string, credentialStorePath string) (*LookupResponse, error) {
	if len(lines) == 0 {
		return nil, errors.New("batch: no records")
	}
	recs := make([]record.InputRecord, len(lines))
	for i, l := range lines {
		rec, err := record.Parse(l)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}

	rep, err := r.RunBatch(ctx, recs, credentialStorePath)
	if err != nil && rep.BatchID == "" {
		return nil, err
	}
	resp := &LookupResponse{BatchID: rep.BatchID, Authenticated: rep.Authenticated, Results: []LookupItem{}}
	for _, o := range rep.Outcomes {
		resp.Results = append(resp.Results, LookupItem{
			Index:  o.Index,
			Record: record.Format(o.Record),
			Kind:   o.Outcome.Kind.String(),
			Value:  o.Outcome.Value(),
			Step:   o.Outcome.Step,
			Reason: o.Outcome.Reason,
		})
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (r *Runner) registerLookupTool(srv *mcp.Server, credentialStorePath string) {
	tool := &mcp.Tool{
		Name:        "eri_lookup",
		Description: "Run ERI assessor lookups. Each record uses the grammar 'ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=..., Years of Experience=11, Mean'.",
		InputSchema: inputSchema(map[string]any{
			"records": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Records in key=value form, processed in order",
			},
		}, []string{"records"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		lr := req.(*lookupReq)
		return r.Lookup(ctx, lr.Records, credentialStorePath)
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Recovery(r.cfg.Logger), kit.Logging(r.cfg.Logger, "eri_lookup"))(endpoint), kit.DecodeJSON[lookupReq]())
}

// --- eri_results ---

type resultsReq struct {
	BatchID   string `json:"batch_id"`
	Code      string `json:"code"`
	Statistic string `json:"statistic"`
	Limit     int    `json:"limit"`
}

type resultsResp struct {
	Batch    *store.Batch  `json:"batch,omitempty"`
	Batches  []store.Batch `json:"batches,omitempty"`
	Outcomes []store.Entry `json:"outcomes,omitempty"`
}

// queryResults answers eri_results: outcomes of one job code, of one
// batch, or the recent batches when neither is given.
func queryResults(ctx context.Context, st *store.Store, q resultsReq) (*resultsResp, error) {
	switch {
	case q.Code != "":
		out, err := st.Lookup(ctx, store.Query{Code: q.Code, Statistic: q.Statistic, Limit: q.Limit})
		if err != nil {
			return nil, err
		}
		return &resultsResp{Outcomes: out}, nil
	case q.BatchID != "":
		b, err := st.Batch(ctx, q.BatchID)
		if err != nil {
			return nil, err
		}
		out, err := st.Outcomes(ctx, q.BatchID)
		if err != nil {
			return nil, err
		}
		return &resultsResp{Batch: &b, Outcomes: out}, nil
	}
	bs, err := st.Batches(ctx, q.Limit)
	if err != nil {
		return nil, err
	}
	return &resultsResp{Batches: bs}, nil
}

func registerResultsTool(srv *mcp.Server, st *store.Store, logger *slog.Logger) {
	tool := &mcp.Tool{
		Name:        "eri_results",
		Description: "Read journaled ERI results: by job code (newest first), by batch id, or list recent batches.",
		InputSchema: inputSchema(map[string]any{
			"code":      map[string]any{"type": "string", "description": "ERI job code"},
			"statistic": map[string]any{"type": "string", "description": "Statistic token filter, e.g. 'Mean'"},
			"batch_id":  map[string]any{"type": "string", "description": "Batch identifier"},
			"limit":     map[string]any{"type": "integer", "description": "Maximum rows"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return queryResults(ctx, st, *req.(*resultsReq))
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Recovery(logger), kit.Logging(logger, "eri_results"), kit.Timeout(30*time.Second))(endpoint), kit.DecodeJSON[resultsReq]())
}
