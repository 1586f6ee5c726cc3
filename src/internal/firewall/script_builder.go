package firewall

import (
	"fmt"
	"regexp"
	"strings"
)

// Standard nftables hook priorities.
const (
	PriorityMangle = -150
	PriorityFilter = 0
	PrioritySrcNAT = 100
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func isValidIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

func quote(s string) string {
	if isValidIdentifier(s) {
		return s
	}
	return fmt.Sprintf("%q", s)
}

// ScriptBuilder builds an nft script for atomic application.
type ScriptBuilder struct {
	lines     []string
	tableName string
	family    string
}

func NewScriptBuilder(tableName, family string) *ScriptBuilder {
	return &ScriptBuilder{
		tableName: tableName,
		family:    family,
		lines:     make([]string, 0, 64),
	}
}

// AddLine adds a raw nft command line to the script.
func (b *ScriptBuilder) AddLine(line string) {
	b.lines = append(b.lines, line)
}

// AddComment adds a "#" comment line.
func (b *ScriptBuilder) AddComment(text string) {
	b.AddLine("# " + text)
}

// RecreateTable drops any previous version of the table and creates it
// empty. The leading "add" makes the delete succeed on first application.
func (b *ScriptBuilder) RecreateTable() {
	b.AddLine(fmt.Sprintf("add table %s %s", b.family, b.tableName))
	b.AddLine(fmt.Sprintf("delete table %s %s", b.family, b.tableName))
	b.AddLine(fmt.Sprintf("add table %s %s", b.family, b.tableName))
}

// AddChain adds a base chain. An empty policy keeps the kernel default (accept).
func (b *ScriptBuilder) AddChain(name, chainType, hook string, priority int, policy string) {
	policyStr := ""
	if policy != "" {
		policyStr = fmt.Sprintf(" policy %s;", policy)
	}
	b.AddLine(fmt.Sprintf("add chain %s %s %s { type %s hook %s priority %d;%s }",
		b.family, b.tableName, quote(name), chainType, hook, priority, policyStr))
}

// AddRule adds a rule to a chain with an optional comment.
func (b *ScriptBuilder) AddRule(chainName, ruleExpr string, comment ...string) {
	commentClause := ""
	if len(comment) > 0 && comment[0] != "" {
		commentClause = fmt.Sprintf(" comment %q", comment[0])
	}
	b.AddLine(fmt.Sprintf("add rule %s %s %s %s%s", b.family, b.tableName, quote(chainName), ruleExpr, commentClause))
}

// Build returns the complete script.
func (b *ScriptBuilder) Build() string {
	return strings.Join(b.lines, "\n") + "\n"
}

func (b *ScriptBuilder) String() string {
	return b.Build()
}

// anonymousSet renders "{ a, b }" or the single element alone.
func anonymousSet(elements []string) string {
	if len(elements) == 1 {
		return elements[0]
	}
	return "{ " + strings.Join(elements, ", ") + " }"
}

// ifname renders an interface name or pattern as an nft string literal.
func ifname(name string) string {
	return fmt.Sprintf("%q", name)
}
