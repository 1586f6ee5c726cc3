package networking

import (
	"strconv"
	"strings"

	"github.com/coreos/go-iptables/iptables"
	"github.com/valyala/fasttemplate"

	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
)

// IPTablesClient is the subset of *iptables.IPTables used by the classifier.
type IPTablesClient interface {
	Exists(table, chain string, rulespec ...string) (bool, error)
	Append(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
}

// IPTableRules are the classifier rules of the iptables backend, rendered
// from the configured templates for every segment.
type IPTableRules struct {
	ipt   IPTablesClient
	rules []*config.IPTablesRule
}

// NewIPTableRules renders the classifier rules using the system iptables.
func NewIPTableRules(cfg *config.Config) (*IPTableRules, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, errors.NewDependencyError("iptables is not available", err)
	}
	return NewIPTableRulesWithClient(ipt, cfg), nil
}

func NewIPTableRulesWithClient(ipt IPTablesClient, cfg *config.Config) *IPTableRules {
	return &IPTableRules{ipt: ipt, rules: processRules(cfg)}
}

// Rules returns the rendered rules.
func (i *IPTableRules) Rules() []*config.IPTablesRule {
	return i.rules
}

func processRules(cfg *config.Config) []*config.IPTablesRule {
	var rules []*config.IPTablesRule

	for _, mark := range SegmentMarks(cfg) {
		for _, rule := range cfg.Classifier.IPTablesRules {
			ruleSpecs := make([]string, len(rule.Rule))
			for j, ruleSpec := range rule.Rule {
				ruleSpecs[j] = processRulePart(ruleSpec, mark)
			}

			rules = append(rules, &config.IPTablesRule{
				Chain: processRulePart(rule.Chain, mark),
				Table: processRulePart(rule.Table, mark),
				Rule:  ruleSpecs,
			})
		}
	}

	return rules
}

func processRulePart(template string, mark SegmentMark) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	t := fasttemplate.New(template, "{{", "}}")
	return t.ExecuteString(map[string]interface{}{
		config.IPTABLES_TMPL_SEGMENT:   string(mark.Segment),
		config.IPTABLES_TMPL_SUBNET:    mark.Subnet,
		config.IPTABLES_TMPL_FWMARK:    strconv.FormatUint(uint64(mark.FwMark), 10),
		config.IPTABLES_TMPL_TABLE:     strconv.Itoa(mark.Table),
		config.IPTABLES_TMPL_INTERFACE: mark.Interface,
	})
}

func (i *IPTableRules) AddIfNotExists() error {
	for _, rule := range i.rules {
		exists, err := i.ipt.Exists(rule.Table, rule.Chain, rule.Rule...)
		if err != nil {
			return errors.NewDependencyError("failed to check iptables rule", err)
		}
		if exists {
			continue
		}

		log.Infof("Adding iptables rule [%v]", rule)
		if err := i.ipt.Append(rule.Table, rule.Chain, rule.Rule...); err != nil {
			return errors.NewDependencyError("failed to append iptables rule", err)
		}
	}
	return nil
}

func (i *IPTableRules) DelIfExists() error {
	for _, rule := range i.rules {
		exists, err := i.ipt.Exists(rule.Table, rule.Chain, rule.Rule...)
		if err != nil {
			return errors.NewDependencyError("failed to check iptables rule", err)
		}
		if !exists {
			continue
		}

		log.Infof("Deleting iptables rule [%v]", rule)
		if err := i.ipt.Delete(rule.Table, rule.Chain, rule.Rule...); err != nil {
			return errors.NewDependencyError("failed to delete iptables rule", err)
		}
	}
	return nil
}

func (i *IPTableRules) CheckRulesExists() (map[*config.IPTablesRule]bool, error) {
	rules := make(map[*config.IPTablesRule]bool)

	for _, rule := range i.rules {
		exists, err := i.ipt.Exists(rule.Table, rule.Chain, rule.Rule...)
		if err != nil {
			log.Errorf("Checking iptables rule presence [%v] is failed: %v", rule, err)
			return nil, errors.NewDependencyError("failed to check iptables rule", err)
		}
		log.Debugf("Checking iptables rule presence [%v]: exists=%v", rule, exists)
		rules[rule] = exists
	}

	return rules, nil
}
