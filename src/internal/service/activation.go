package service

import (
	"context"
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/domain"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/firewall"
	"github.com/routervm/uplinkctl/src/internal/log"
	"github.com/routervm/uplinkctl/src/internal/models"
	"github.com/routervm/uplinkctl/src/internal/networking"
)

// RestoreResult is the outcome of restoring one segment at activation.
type RestoreResult struct {
	Segment models.Segment `json:"segment"`
	Target  string         `json:"target,omitempty"`
	Route   string         `json:"route,omitempty"`
	// Error is set when the segment was left fail-closed.
	Error string `json:"error,omitempty"`
}

// ActivationReport summarizes an activation.
type ActivationReport struct {
	Seeded   []models.Segment `json:"seeded"`
	Segments []RestoreResult  `json:"segments"`
}

// Activate brings the router into its configured state: default
// assignments are seeded for segments without a record, the policy rules
// and classifier are installed, the firewall is applied and every segment
// is reconciled to its stored target.
//
// A segment that cannot be restored (its VPN is not up yet, for example)
// is left with an empty table and reported; this is not an error and the
// store is not changed.
func (s *ControlService) Activate(ctx context.Context) (*ActivationReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.ValidateHost(s.cfg); err != nil {
		log.Warnf("Host check: %v", err)
	}

	defaults, err := s.cfg.DefaultTargets()
	if err != nil {
		return nil, errors.NewConfigError("invalid default target", err)
	}
	seeded, err := s.store.Seed(defaults)
	if err != nil {
		return nil, err
	}

	if err := s.routing.InstallRules(); err != nil {
		return nil, err
	}

	if s.cfg.Classifier.Backend == config.ClassifierBackendIPTables {
		rules, err := s.classifierRules()
		if err != nil {
			return nil, err
		}
		if err := rules.AddIfNotExists(); err != nil {
			return nil, err
		}
	}

	if _, err := s.applyFirewall(ctx); err != nil {
		return nil, err
	}

	report := &ActivationReport{Seeded: seeded}
	for _, segment := range models.Segments() {
		report.Segments = append(report.Segments, s.restore(segment))
	}

	log.Infof("Activation complete")
	return report, nil
}

func (s *ControlService) restore(segment models.Segment) RestoreResult {
	result := RestoreResult{Segment: segment}

	unlock, err := s.store.Lock(segment)
	if err != nil {
		result.Error = err.Error()
		s.failClosed(segment, err)
		return result
	}
	defer unlock()

	target, err := s.store.Get(segment)
	if err != nil {
		result.Error = err.Error()
		s.failClosed(segment, err)
		return result
	}
	result.Target = target.String()

	egress, err := s.routing.Reconcile(segment, target)
	if err != nil {
		result.Error = err.Error()
		s.failClosed(segment, err)
		return result
	}
	if egress != nil {
		result.Route = fmt.Sprintf("default %s", egress)
	}
	return result
}

func (s *ControlService) failClosed(segment models.Segment, cause error) {
	log.Warnf("[%s] Left fail-closed: %v", segment, cause)
	if err := s.routing.FlushSegment(segment); err != nil {
		log.Errorf("[%s] %v", segment, err)
	}
}

func (s *ControlService) classifierRules() (domain.ClassifierRules, error) {
	factory := s.deps.Classifier()
	if factory == nil {
		return nil, errors.NewDependencyError("iptables classifier is not available", nil)
	}
	return factory(s.cfg)
}

// RenderFirewall returns the generated nft script.
func (s *ControlService) RenderFirewall() (string, error) {
	return firewall.Generate(s.cfg)
}

// ApplyFirewall generates and applies the ruleset, and writes it to the
// configured output path if any. It returns the applied script.
func (s *ControlService) ApplyFirewall(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyFirewall(ctx)
}

func (s *ControlService) applyFirewall(ctx context.Context) (string, error) {
	script, err := firewall.Generate(s.cfg)
	if err != nil {
		return "", err
	}

	if err := firewall.NewApplier(s.deps.CommandRunner()).Apply(ctx, script); err != nil {
		return "", err
	}

	if path := s.cfg.Firewall.OutputPath; path != "" {
		if err := firewall.WriteArtifact(s.cfg.ResolvePath(path), script); err != nil {
			return "", err
		}
	}
	return script, nil
}

// FirewallChains returns the chains the generated table contains.
func (s *ControlService) FirewallChains() []string {
	return firewall.Chains(s.cfg)
}

// CheckFirewall reports whether the generated table and chains are loaded.
func (s *ControlService) CheckFirewall() (*firewall.CheckResult, error) {
	checker := s.deps.FirewallChecker()
	if checker == nil {
		return nil, errors.NewDependencyError("nftables checker is not available", nil)
	}
	return checker.Check(s.cfg.Firewall.TableName, firewall.Chains(s.cfg))
}

// Undo removes the policy rules and the classifier rules and flushes every
// segment table. The store and the firewall are left untouched.
func (s *ControlService) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.routing.RemoveRules(); err != nil {
		return err
	}

	if s.cfg.Classifier.Backend == config.ClassifierBackendIPTables {
		rules, err := s.classifierRules()
		if err != nil {
			return err
		}
		if err := rules.DelIfExists(); err != nil {
			return err
		}
	}

	log.Infof("Routing configuration removed")
	return nil
}

// CheckItem is a single self-check result.
type CheckItem struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// SelfCheckReport is the result of SelfCheck.
type SelfCheckReport struct {
	Checks []CheckItem `json:"checks"`
}

// OK reports whether every check passed.
func (r *SelfCheckReport) OK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func (r *SelfCheckReport) add(name string, ok bool, format string, args ...interface{}) {
	r.Checks = append(r.Checks, CheckItem{Name: name, OK: ok, Message: fmt.Sprintf(format, args...)})
}

// SelfCheck verifies the kernel state against the configuration and the
// store: host interfaces, policy rules, each segment table, the classifier
// rules and the firewall table.
func (s *ControlService) SelfCheck() *SelfCheckReport {
	report := &SelfCheckReport{}

	if err := s.validator.ValidateHost(s.cfg); err != nil {
		report.add("host", false, "%v", err)
	} else {
		report.add("host", true, "configured interfaces present")
	}

	rules, err := s.routing.CheckRules()
	if err != nil {
		report.add("rules", false, "%v", err)
	} else {
		for _, segment := range models.Segments() {
			rule, kill := s.routing.Rule(segment), s.routing.KillRule(segment)
			if rules[segment] {
				report.add("rule/"+string(segment), true, "[%s] [%s] present", rule, kill)
			} else {
				report.add("rule/"+string(segment), false, "[%s] [%s] not both present", rule, kill)
			}
		}
	}

	for _, segment := range models.Segments() {
		s.checkTable(report, segment)
	}

	if s.cfg.Classifier.Backend == config.ClassifierBackendIPTables {
		s.checkClassifier(report)
	}

	if result, err := s.CheckFirewall(); err != nil {
		report.add("firewall", false, "%v", err)
	} else if !result.OK() {
		report.add("firewall", false, "table inet %s loaded=%v, missing chains %v",
			result.Table, result.TableLoaded, result.MissingChains)
	} else {
		report.add("firewall", true, "table inet %s loaded", result.Table)
	}

	return report
}

// checkTable compares the segment table with the route its stored target
// implies. A target that cannot be resolved right now must have an empty
// table.
func (s *ControlService) checkTable(report *SelfCheckReport, segment models.Segment) {
	name := "table/" + string(segment)

	target, err := s.store.Get(segment)
	if err != nil {
		report.add(name, false, "%v", err)
		return
	}

	routes, err := s.routing.Routes(segment)
	if err != nil {
		report.add(name, false, "%v", err)
		return
	}

	egress, err := s.routing.Resolve(target)
	if err != nil && errors.CodeOf(err) != errors.ErrCodeNotFound {
		report.add(name, false, "%v", err)
		return
	}

	if egress == nil {
		if len(routes) == 0 {
			report.add(name, true, "%s: table %d empty (fail-closed)", target, segment.TableID())
		} else {
			report.add(name, false, "%s: table %d should be empty but has %v", target, segment.TableID(), routes)
		}
		return
	}

	if len(routes) == 1 && routes[0].IsDefault() && routes[0].Interface == egress.Interface {
		report.add(name, true, "%s: table %d [%s]", target, segment.TableID(), routes[0])
		return
	}
	report.add(name, false, "%s: table %d expected default %s, has %v", target, segment.TableID(), egress, routes)
}

func (s *ControlService) checkClassifier(report *SelfCheckReport) {
	rules, err := s.classifierRules()
	if err != nil {
		report.add("classifier", false, "%v", err)
		return
	}
	present, err := rules.CheckRulesExists()
	if err != nil {
		report.add("classifier", false, "%v", err)
		return
	}

	missing := 0
	for _, exists := range present {
		if !exists {
			missing++
		}
	}
	if missing > 0 {
		report.add("classifier", false, "%d of %d iptables rules missing", missing, len(present))
		return
	}
	report.add("classifier", true, "%d iptables rules present", len(present))
}

// Routes returns the contents of a segment table.
func (s *ControlService) Routes(segment models.Segment) ([]networking.Route, error) {
	return s.routing.Routes(segment)
}
