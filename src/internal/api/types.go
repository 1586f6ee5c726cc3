package api

import "github.com/routervm/uplinkctl/src/internal/service"

// DataResponse wraps successful responses.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// AssignRequest is the body of POST /api/v1/segments/{segment}/assign.
type AssignRequest struct {
	// Target is "blocked", "direct" or a VPN name.
	Target string `json:"target"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Segments []service.SegmentStatus `json:"segments"`
}

// TunnelsResponse is returned by GET /api/v1/tunnels.
type TunnelsResponse struct {
	Tunnels []service.TunnelStatus `json:"tunnels"`
}

// TunnelActionResponse is returned by the tunnel connect and disconnect
// endpoints.
type TunnelActionResponse struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Healthy bool                `json:"healthy"`
	Checks  []service.CheckItem `json:"checks"`
}
