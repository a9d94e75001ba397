package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/certdesk/core/certbot"
	"github.com/dmitrymomot/certdesk/core/health"
	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/middleware"
)

var errNotListening = errors.New("backend is not listening yet")

// maxRequestBody caps API request bodies.
const maxRequestBody = 64 << 10

// BatchInstaller runs a sequential plugin install batch.
type BatchInstaller interface {
	Run(ctx context.Context, keys []string) certbot.BatchResult
}

type pluginView struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	PackageName    string `json:"package_name"`
	FullPluginName string `json:"full_plugin_name,omitempty"`
}

type installRequest struct {
	Plugins []string `json:"plugins"`
}

type outcomeView struct {
	Key       string `json:"key"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

type errorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlers struct {
	logger      *slog.Logger
	registry    *certbot.Registry
	provisioner BatchInstaller
}

func newMux(h *handlers, schema http.Handler, ready func(context.Context) error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.Handle("GET /health/ready", health.Readiness(h.logger, ready))
	mux.Handle("GET /api/schema", schema)
	mux.HandleFunc("GET /api/certbot/plugins", h.listPlugins)
	mux.HandleFunc("POST /api/certbot/plugins", h.installPlugins)

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Logging(h.logger, "/health/live", "/health/ready"),
		middleware.SecurityHeaders(nil),
		middleware.BodyLimit(maxRequestBody),
	)
}

func (h *handlers) listPlugins(w http.ResponseWriter, _ *http.Request) {
	keys := h.registry.Keys()
	out := make([]pluginView, 0, len(keys))
	for _, key := range keys {
		p, _ := h.registry.Lookup(key)
		out = append(out, pluginView{
			Key:            p.Key,
			Name:           p.Name,
			PackageName:    p.PackageName,
			FullPluginName: p.FullPluginName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// installPlugins runs the batch synchronously and reports every outcome.
// Unknown keys are attempted like any other and fail inside the batch.
func (h *handlers) installPlugins(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req installRequest
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorObject{Code: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	if req.Plugins == nil {
		writeJSON(w, http.StatusBadRequest, errorObject{Code: http.StatusBadRequest, Message: "plugins is required"})
		return
	}

	// A batch outlives the server write timeout and the client connection.
	// Items already started are never interrupted.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	result := h.provisioner.Run(context.WithoutCancel(r.Context()), req.Plugins)

	outcomes := make([]outcomeView, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		v := outcomeView{Key: o.Key, Succeeded: o.Succeeded}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		outcomes = append(outcomes, v)
	}

	if result.AnyFailed() {
		h.logger.WarnContext(r.Context(), certbot.SomePluginsFailedMessage,
			logger.Count("failed", len(result.Failed())),
			logger.Count("total", len(result.Outcomes)),
		)
		writeJSON(w, http.StatusInternalServerError, struct {
			errorObject
			Results []outcomeView `json:"results"`
		}{
			errorObject: errorObject{Code: certbot.SomePluginsFailedCode, Message: certbot.SomePluginsFailedMessage},
			Results:     outcomes,
		})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Results []outcomeView `json:"results"`
	}{Results: outcomes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
