package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/paydesk/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is the part of *mongo.Client the health check needs.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// ConsoleCounter reports how many consoles are live.
type ConsoleCounter interface {
	Len() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   Pinger
	Consoles ConsoleCounter
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. consoles may be nil.
func NewHandler(client Pinger, consoles ConsoleCounter, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Consoles: consoles,
		Log:      logger,
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Consoles *int   `json:"consoles,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "consoles":3 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Consoles != nil {
		n := h.Consoles.Len()
		resp.Consoles = &n
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// ServeLive handles GET /health/live. It reports the process is up and
// how many consoles it holds.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := healthResponse{Status: "ok", Database: "unchecked"}
	if h.Consoles != nil {
		n := h.Consoles.Len()
		resp.Consoles = &n
	}
	_ = json.NewEncoder(w).Encode(resp)
}
