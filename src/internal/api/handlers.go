package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/service"
)

// Handler manages all API endpoints and dependencies.
type Handler struct {
	svc     *service.ControlService
	metrics *Metrics
}

// NewHandler creates a new API handler backed by the control service.
func NewHandler(svc *service.ControlService, metrics *Metrics) *Handler {
	return &Handler{
		svc:     svc,
		metrics: metrics,
	}
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

// decodeJSON decodes JSON from the request body.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusOptions reads the probe query parameter.
func statusOptions(r *http.Request) service.StatusOptions {
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	return service.StatusOptions{Probe: probe}
}

// GetStatus returns the status of every segment.
// GET /api/v1/status?probe=true
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONData(w, StatusResponse{Segments: h.svc.Status(r.Context(), statusOptions(r))})
}

// GetSegment returns the status of one segment.
// GET /api/v1/segments/{segment}
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	segment, err := models.ParseSegment(chi.URLParam(r, "segment"))
	if err != nil {
		WriteNotFound(w, "Segment")
		return
	}
	writeJSONData(w, h.svc.SegmentStatus(r.Context(), segment, statusOptions(r)))
}

// AssignSegment assigns a target to a segment.
// POST /api/v1/segments/{segment}/assign
func (h *Handler) AssignSegment(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "segment")

	var req AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteInvalidRequest(w, "Invalid JSON: "+err.Error())
		return
	}
	if req.Target == "" {
		WriteInvalidRequest(w, "target is required")
		return
	}

	result, err := h.svc.Assign(segment, req.Target)
	h.metrics.observeAssign(segment, err)
	if err != nil {
		log.Warnf("[API] %v", err)
		WriteServiceError(w, err)
		return
	}
	writeJSONData(w, result)
}

// ListTunnels returns the statically known tunnels.
// GET /api/v1/tunnels
func (h *Handler) ListTunnels(w http.ResponseWriter, r *http.Request) {
	writeJSONData(w, TunnelsResponse{Tunnels: h.svc.List()})
}

// ConnectTunnel starts a tunnel.
// POST /api/v1/tunnels/{name}/connect
func (h *Handler) ConnectTunnel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.svc.Connect(r.Context(), name)
	h.tunnelActionResult(w, name, "connect", err)
}

// DisconnectTunnel stops a tunnel.
// POST /api/v1/tunnels/{name}/disconnect
func (h *Handler) DisconnectTunnel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.svc.Disconnect(r.Context(), name)
	h.tunnelActionResult(w, name, "disconnect", err)
}

func (h *Handler) tunnelActionResult(w http.ResponseWriter, name, action string, err error) {
	h.metrics.observeTunnelOp(action, err)
	if err != nil {
		log.Warnf("[API] %v", err)
		WriteServiceError(w, err)
		return
	}
	writeJSONData(w, TunnelActionResponse{Name: name, Action: action})
}

// Health runs the self-check. It answers 503 when any check fails.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.svc.SelfCheck()
	resp := HealthResponse{Healthy: report.OK(), Checks: report.Checks}

	statusCode := http.StatusOK
	if !resp.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}
