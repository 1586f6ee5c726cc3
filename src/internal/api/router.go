package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/service"
)

// NewRouter creates the HTTP router with all API routes configured.
func NewRouter(svc *service.ControlService, metrics *Metrics) http.Handler {
	r := chi.NewRouter()

	_, management, err := net.ParseCIDR(svc.Config().General.ManagementSubnet)
	if err != nil {
		log.Warnf("[API] Invalid management subnet, only loopback peers are allowed: %v", err)
		management = nil
	}

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(ManagementOnly(management))
	r.Use(metrics.Instrument)

	h := NewHandler(svc, metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(JSONContentType)

		r.Get("/status", h.GetStatus)

		r.Route("/segments/{segment}", func(r chi.Router) {
			r.Get("/", h.GetSegment)
			r.Post("/assign", h.AssignSegment)
		})

		r.Route("/tunnels", func(r chi.Router) {
			r.Get("/", h.ListTunnels)
			r.Post("/{name}/connect", h.ConnectTunnel)
			r.Post("/{name}/disconnect", h.DisconnectTunnel)
		})
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	return r
}
