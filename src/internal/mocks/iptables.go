package mocks

import (
	"strings"
)

// FakeIPTables is an in-memory networking.IPTablesClient.
type FakeIPTables struct {
	// Rules maps "table/chain" to the rule specs appended to it.
	Rules map[string][]string

	ExistsFunc func(table, chain string, rulespec ...string) (bool, error)

	AppendCalls int
	DeleteCalls int
}

func NewFakeIPTables() *FakeIPTables {
	return &FakeIPTables{Rules: make(map[string][]string)}
}

func (f *FakeIPTables) Exists(table, chain string, rulespec ...string) (bool, error) {
	if f.ExistsFunc != nil {
		return f.ExistsFunc(table, chain, rulespec...)
	}
	spec := strings.Join(rulespec, " ")
	for _, r := range f.Rules[table+"/"+chain] {
		if r == spec {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeIPTables) Append(table, chain string, rulespec ...string) error {
	f.AppendCalls++
	key := table + "/" + chain
	f.Rules[key] = append(f.Rules[key], strings.Join(rulespec, " "))
	return nil
}

func (f *FakeIPTables) Delete(table, chain string, rulespec ...string) error {
	f.DeleteCalls++
	key := table + "/" + chain
	spec := strings.Join(rulespec, " ")
	rules := f.Rules[key]
	for i, r := range rules {
		if r == spec {
			f.Rules[key] = append(rules[:i], rules[i+1:]...)
			break
		}
	}
	return nil
}
