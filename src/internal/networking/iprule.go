package networking

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/routervm/uplinkctl/src/internal/log"
)

type IPRule struct {
	*netlink.Rule
}

func (r *IPRule) String() string {
	if r.Type == unix.RTN_UNREACHABLE {
		return fmt.Sprintf("rule %d: fwmark=%d -> unreachable", r.Priority, r.Mark)
	}
	return fmt.Sprintf("rule %d: fwmark=%d -> table %d", r.Priority, r.Mark, r.Table)
}

func BuildRule(rule Rule) *IPRule {
	ipr := netlink.NewRule()

	ipr.Mark = rule.Mark
	ipr.Priority = rule.Priority
	ipr.Family = netlink.FAMILY_V4
	if rule.Unreachable {
		ipr.Type = unix.RTN_UNREACHABLE
	} else {
		ipr.Table = rule.Table
	}
	return &IPRule{ipr}
}

func (ipr *IPRule) Add() error {
	log.Debugf("Adding IP rule [%v]", ipr)
	if err := netlink.RuleAdd(ipr.Rule); err != nil {
		log.Warnf("Failed to add IP rule [%v]: %v", ipr, err)
		return err
	}

	return nil
}

func (ipr *IPRule) AddIfNotExists() (bool, error) {
	if exists, err := ipr.IsExists(); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	if err := ipr.Add(); err != nil {
		return false, err
	}
	return true, nil
}

func (ipr *IPRule) IsExists() (bool, error) {
	// Unreachable rules carry table 0, which keeps them apart from lookup rules.
	filtered, err := netlink.RuleListFiltered(ipr.Family, ipr.Rule, netlink.RT_FILTER_TABLE|netlink.RT_FILTER_MARK|netlink.RT_FILTER_PRIORITY)
	if err != nil {
		log.Warnf("Checking if IP rule exists [%v] is failed: %v", ipr, err)
		return false, err
	}

	exists := len(filtered) > 0
	log.Debugf("Checking if IP rule exists [%v]: %v", ipr, exists)
	return exists, nil
}

func (ipr *IPRule) Del() error {
	log.Debugf("Deleting IP rule [%v]", ipr)
	if err := netlink.RuleDel(ipr.Rule); err != nil {
		log.Warnf("Failed to delete IP rule [%v]: %v", ipr, err)
		return err
	}

	return nil
}

func (ipr *IPRule) DelIfExists() (bool, error) {
	if exists, err := ipr.IsExists(); err != nil {
		return false, err
	} else if !exists {
		return false, nil
	}
	if err := ipr.Del(); err != nil {
		return false, err
	}
	return true, nil
}
