package tunnel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/routervm/uplinkctl/src/internal/errors"
	"github.com/routervm/uplinkctl/src/internal/log"
)

const (
	defaultDNSPort  = "53"
	dnsProbeTimeout = 3 * time.Second
	// DefaultProbeName is resolved when probing a tunnel's DNS server.
	DefaultProbeName = "example.com"
)

// ProbeDNS sends an A query for name to server through whatever route the
// kernel picks and returns the round trip time.
func ProbeDNS(ctx context.Context, server, name string) (time.Duration, error) {
	address := server
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(server, defaultDNSPort)
	}

	client := &dns.Client{
		Net:     "udp",
		Timeout: dnsProbeTimeout,
	}

	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), dns.TypeA)
	req.RecursionDesired = true

	resp, rtt, err := client.ExchangeContext(ctx, req, address)
	if err != nil {
		log.Debugf("DNS probe of %s via %s failed: %v", name, address, err)
		return 0, errors.NewDependencyError(fmt.Sprintf("DNS query to %s failed", address), err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return rtt, errors.NewDependencyError(
			fmt.Sprintf("DNS query to %s returned %s", address, dns.RcodeToString[resp.Rcode]), nil)
	}
	return rtt, nil
}
