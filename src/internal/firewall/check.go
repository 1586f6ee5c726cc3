package firewall

import (
	"github.com/google/nftables"

	"github.com/routervm/uplinkctl/src/internal/errors"
)

// NftConn is the subset of *nftables.Conn used to read kernel state.
type NftConn interface {
	ListTablesOfFamily(family nftables.TableFamily) ([]*nftables.Table, error)
	ListChains() ([]*nftables.Chain, error)
}

// CheckResult tells whether the generated table and its chains are loaded.
type CheckResult struct {
	Table         string          `json:"table"`
	TableLoaded   bool            `json:"table_loaded"`
	Chains        map[string]bool `json:"chains"`
	MissingChains []string        `json:"missing_chains,omitempty"`
}

// OK reports whether the table and every expected chain are present.
func (r *CheckResult) OK() bool {
	return r.TableLoaded && len(r.MissingChains) == 0
}

// Checker inspects the loaded ruleset through netlink.
type Checker struct {
	conn func() (NftConn, error)
}

// NewChecker returns a checker using a fresh nftables connection per check.
func NewChecker() *Checker {
	return &Checker{conn: func() (NftConn, error) { return nftables.New() }}
}

// NewCheckerWithConn returns a checker using conn.
func NewCheckerWithConn(conn NftConn) *Checker {
	return &Checker{conn: func() (NftConn, error) { return conn, nil }}
}

// Check looks for the inet table and the expected chains.
func (c *Checker) Check(table string, chains []string) (*CheckResult, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, errors.NewDependencyError("failed to open nftables connection", err)
	}

	result := &CheckResult{Table: table, Chains: make(map[string]bool)}
	for _, name := range chains {
		result.Chains[name] = false
	}

	tables, err := conn.ListTablesOfFamily(nftables.TableFamilyINet)
	if err != nil {
		return nil, errors.NewDependencyError("failed to list nftables tables", err)
	}
	for _, t := range tables {
		if t.Name == table {
			result.TableLoaded = true
			break
		}
	}

	if result.TableLoaded {
		loaded, err := conn.ListChains()
		if err != nil {
			return nil, errors.NewDependencyError("failed to list nftables chains", err)
		}
		for _, ch := range loaded {
			if ch.Table == nil || ch.Table.Name != table || ch.Table.Family != nftables.TableFamilyINet {
				continue
			}
			if _, expected := result.Chains[ch.Name]; expected {
				result.Chains[ch.Name] = true
			}
		}
	}

	for _, name := range chains {
		if !result.Chains[name] {
			result.MissingChains = append(result.MissingChains, name)
		}
	}
	return result, nil
}
