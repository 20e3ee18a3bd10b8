// CLAUDE:SUMMARY Read-only chi HTTP API over the run journal: batches, outcomes, job-code lookup, CSV export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/eriflow/kit"
	"github.com/hazyhaar/eriflow/sink"
	"github.com/hazyhaar/eriflow/store"
)

// Handler serves the journal:
//
//	GET /health
//	GET /api/batches?limit=N
//	GET /api/batches/{batchID}
//	GET /api/batches/{batchID}/outcomes
//	GET /api/batches/{batchID}/results.csv
//	GET /api/outcomes?code=C&statistic=S&limit=N
func Handler(st *store.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{st: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(apiHeaders)
	r.Use(tagContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/batches", s.batches)
		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/", s.batch)
			r.Get("/outcomes", s.outcomes)
			r.Get("/results.csv", s.resultsCSV)
		})
		r.Get("/outcomes", s.lookup)
	})
	return r
}

type server struct {
	st     *store.Store
	logger *slog.Logger
}

func (s *server) batches(w http.ResponseWriter, r *http.Request) {
	bs, err := s.st.Batches(r.Context(), intParam(r, "limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"batches": nonNil(bs)})
}

func (s *server) batch(w http.ResponseWriter, r *http.Request) {
	b, err := s.st.Batch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, b)
}

func (s *server) outcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	if _, err := s.st.Batch(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	es, err := s.st.Outcomes(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"outcomes": nonNil(es)})
}

// resultsCSV exports a batch in the result log layout. Step failures are
// left out, as in the log itself.
func (s *server) resultsCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	if _, err := s.st.Batch(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	es, err := s.st.Outcomes(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	cw := csv.NewWriter(w)
	cw.Write(sink.Header)
	for _, e := range es {
		if e.Kind == "step_failure" {
			continue
		}
		cw.Write([]string{e.Code, e.Location, strconv.FormatInt(e.Revenue, 10), e.Industry, e.Experience, e.Statistic, e.Value})
	}
	cw.Flush()
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}
	es, err := s.st.Lookup(r.Context(), store.Query{
		Code:      code,
		Statistic: r.URL.Query().Get("statistic"),
		Limit:     intParam(r, "limit"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"outcomes": nonNil(es)})
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.ErrorContext(r.Context(), "report: query failed",
		"path", r.URL.Path, "request_id", kit.GetRequestID(r.Context()), "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
