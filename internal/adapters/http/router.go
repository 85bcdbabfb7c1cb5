package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qinyuanle/legal-qa-engine/internal/core/ports"
	"github.com/qinyuanle/legal-qa-engine/internal/observability/metrics"
)

type Router struct {
	questions ports.LegalQuestionService
	admin     ports.GraphAdminService
	index     ports.SearchIndex
	metrics   *metrics.HTTPServerMetrics
	service   string
}

// Options bound the traffic-control middleware. Zero values disable the
// corresponding gate.
type Options struct {
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	BackpressureMax time.Duration
}

func NewRouter(
	questions ports.LegalQuestionService,
	admin ports.GraphAdminService,
	index ports.SearchIndex,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		questions: questions,
		admin:     admin,
		index:     index,
		metrics:   m,
		service:   service,
	}
}

func (rt *Router) Handler(options Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/graph/stats", rt.graphStats)
	mux.HandleFunc("/v1/graph/rebuild", rt.graphRebuild)
	mux.HandleFunc("/v1/graph/export", rt.graphExport)
	mux.HandleFunc("/v1/graph/expand", rt.graphExpand)
	mux.HandleFunc("/v1/graph/relations/", rt.graphRelations)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if options.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, options.MaxInFlight, options.BackpressureMax)
	}
	if options.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, options.RateLimitRPS, options.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.index != nil {
		health, err := rt.index.Health(r.Context())
		if err != nil || !health.Healthy {
			payload["status"] = "degraded"
		}
		payload["index"] = health
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start := time.Now()
	answer, err := rt.questions.Answer(r.Context(), req.Question)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(rt.service, answer, time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) graphStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := rt.admin.Stats(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) graphRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	if err := rt.admin.RequestRebuild(r.Context(), force); err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "requested", "force": force})
}

func (rt *Router) graphExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	relations, err := rt.admin.Export(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"relations": relations, "count": len(relations)})
}

func (rt *Router) graphExpand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	expansion, err := rt.admin.Expand(r.Context(), req.Text)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, expansion)
}

// graphRelations serves /v1/graph/relations/{crime}/{article}.
func (rt *Router) graphRelations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/graph/relations/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "crime and article are required")
		return
	}
	article, err := strconv.Atoi(parts[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, "article must be a number")
		return
	}

	detail, err := rt.admin.RelationDetails(r.Context(), parts[0], article)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
