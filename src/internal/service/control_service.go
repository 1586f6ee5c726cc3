package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/domain"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
	"github.com/routervm/uplinkctl/src/internal/store"
	"github.com/routervm/uplinkctl/src/internal/tunnel"
)

// ControlService orchestrates the assignment of uplink targets to segments.
//
// Assign is the only transition of a segment's state. It is serialized by
// the service mutex inside one process and by the per-segment store lock
// across processes, so the CLI and a running API server can be used
// side by side.
type ControlService struct {
	mu sync.Mutex

	cfg       *config.Config
	deps      *domain.AppDependencies
	store     *store.Store
	routing   *networking.RoutingManager
	tunnels   *tunnel.Manager
	validator *ValidationService
}

// NewControlService creates a control service for cfg.
func NewControlService(cfg *config.Config, deps *domain.AppDependencies) *ControlService {
	backend := deps.RoutingBackend()

	tunnels := tunnel.NewManager(cfg, deps.CommandRunner(), backend)
	if factory := deps.WireGuardClient(); factory != nil {
		tunnels.WithWireGuardClient(factory)
	}

	return &ControlService{
		cfg:       cfg,
		deps:      deps,
		store:     store.New(cfg.GetAbsStateDir()),
		routing:   networking.NewRoutingManager(backend, cfg.General.WANInterface, cfg.General.RulePriorityBase),
		tunnels:   tunnels,
		validator: NewValidationService(backend),
	}
}

// Config returns the configuration the service was created with.
func (s *ControlService) Config() *config.Config {
	return s.cfg
}

// Store returns the assignment store.
func (s *ControlService) Store() *store.Store {
	return s.store
}

// AssignResult describes a successful assignment.
type AssignResult struct {
	Segment models.Segment `json:"segment"`
	Target  models.Target  `json:"target"`
	Table   int            `json:"table"`
	// Route is the installed default route, empty for blocked.
	Route string `json:"route,omitempty"`
}

func assignError(segment, target string, err error) error {
	return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("assign %s -> %s failed", segment, target), err)
}

// Assign parses segment and target and assigns the target to the segment.
func (s *ControlService) Assign(segmentName, targetToken string) (*AssignResult, error) {
	segment, err := models.ParseSegment(segmentName)
	if err != nil {
		return nil, assignError(segmentName, targetToken, err)
	}
	target, err := models.ParseTarget(targetToken)
	if err != nil {
		return nil, assignError(segmentName, targetToken, err)
	}
	return s.AssignTarget(segment, target)
}

// AssignTarget reconciles the segment's table to target and persists the
// assignment once the route change succeeded. On failure the store and the
// table are left as they were.
func (s *ControlService) AssignTarget(segment models.Segment, target models.Target) (*AssignResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.store.Lock(segment)
	if err != nil {
		return nil, assignError(string(segment), target.String(), err)
	}
	defer unlock()

	previous, previousErr := s.store.Get(segment)

	egress, err := s.routing.Reconcile(segment, target)
	if err != nil {
		log.Debugf("[%s] Reconcile to %s failed: %v", segment, target, err)
		return nil, assignError(string(segment), target.String(), err)
	}

	if err := s.store.Set(segment, target); err != nil {
		s.rollback(segment, previous, previousErr)
		return nil, assignError(string(segment), target.String(), err)
	}

	result := &AssignResult{Segment: segment, Target: target, Table: segment.TableID()}
	if egress != nil {
		result.Route = fmt.Sprintf("default %s", egress)
	}
	log.Infof("[%s] Assigned %s", segment, target)
	return result, nil
}

// rollback brings the table back in line with the stored target after the
// store refused the new one. Without a readable previous record the table
// is emptied.
func (s *ControlService) rollback(segment models.Segment, previous models.Target, previousErr error) {
	if previousErr == nil {
		if _, err := s.routing.Reconcile(segment, previous); err == nil {
			log.Warnf("[%s] Routing rolled back to %s", segment, previous)
			return
		}
	}
	if err := s.routing.FlushSegment(segment); err != nil {
		log.Errorf("[%s] Failed to roll back routing: %v", segment, err)
		return
	}
	log.Warnf("[%s] Routing rolled back to blocked", segment)
}

// TunnelStatus is a statically known tunnel with its interface presence.
type TunnelStatus struct {
	tunnel.Descriptor
	Up        bool   `json:"up"`
	Interface string `json:"interface,omitempty"`
}

// List returns the statically known tunnels. Interface presence is probed
// by exact name and tun-<name> only, never the generic fallback.
func (s *ControlService) List() []TunnelStatus {
	descriptors := s.tunnels.List()
	out := make([]TunnelStatus, 0, len(descriptors))

	for _, d := range descriptors {
		ts := TunnelStatus{Descriptor: d}
		for _, candidate := range networking.VPNInterfaceCandidates(d.Name)[:2] {
			exists, err := s.tunnels.Exists(candidate)
			if err != nil {
				log.Debugf("[tunnel %s] %v", d.Name, err)
				break
			}
			if exists {
				ts.Up = true
				ts.Interface = candidate
				break
			}
		}
		out = append(out, ts)
	}
	return out
}

// Connect brings a tunnel up.
func (s *ControlService) Connect(ctx context.Context, name string) error {
	if err := s.tunnels.Connect(ctx, name); err != nil {
		return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("connect %s failed", name), err)
	}
	return nil
}

// Disconnect tears a tunnel down. Segments assigned to it become
// fail-closed once its interface disappears.
func (s *ControlService) Disconnect(ctx context.Context, name string) error {
	if err := s.tunnels.Disconnect(ctx, name); err != nil {
		return errors.Wrap(errors.CodeOf(err), fmt.Sprintf("disconnect %s failed", name), err)
	}
	return nil
}
