package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/yndnr/meshnode-go/internal/core/domain"
	"github.com/yndnr/meshnode-go/internal/core/service"
	"github.com/yndnr/meshnode-go/internal/telemetry/logger"
)

const probeTimeout = 2 * time.Second

// StatusSource reports the attachment state of a node.
// *service.Attacher satisfies it.
type StatusSource interface {
	Identity() domain.NodeIdentity
	State() service.State
	NodePath() string
	Policy() service.RecoveryPolicy
}

// DaemonProbe reports whether the mesh daemon owns its bus name.
type DaemonProbe interface {
	DaemonAvailable(ctx context.Context) (bool, error)
}

// RouterConfig holds the dependencies of the status routes.
type RouterConfig struct {
	Status  StatusSource
	Probe   DaemonProbe
	Metrics http.Handler
	Logger  logger.Logger
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	Node     string `json:"node" yaml:"node"`
	State    string `json:"state" yaml:"state"`
	NodePath string `json:"node_path,omitempty" yaml:"node_path,omitempty"`
	Policy   string `json:"policy" yaml:"policy"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Daemon bool   `json:"daemon"`
	Error  string `json:"error,omitempty"`
	Time   string `json:"time"`
}

// NewRouter builds the status handler wrapped in the standard middleware
// chain.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, cfg.Probe)
	})
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		handleState(w, cfg.Status)
	})

	return Chain(mux,
		RequestID(),
		Recover(log),
		AccessLog(log),
	)
}

func handleHealth(w http.ResponseWriter, r *http.Request, probe DaemonProbe) {
	resp := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	if probe == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	ok, err := probe.DaemonAvailable(ctx)
	resp.Daemon = ok
	switch {
	case err != nil:
		resp.Status = "unavailable"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case !ok:
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleState(w http.ResponseWriter, src StatusSource) {
	if src == nil {
		writeError(w, http.StatusServiceUnavailable, domain.ErrBusUnavailable.Code, "node not started")
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{
		Node:     src.Identity().String(),
		State:    src.State().String(),
		NodePath: src.NodePath(),
		Policy:   src.Policy().String(),
	})
}
