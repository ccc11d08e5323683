// Package resolve performs reverse-DNS lookups for observed devices.
// Hostnames are a best-effort hint for devices without a configured
// display name; lookup failures are expected on home networks and
// never fail a cycle.
package resolve

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"lanwatch/internal/logging"
)

const (
	resolvConfPath = "/etc/resolv.conf"
	defaultTimeout = 2 * time.Second
)

// Resolver answers PTR queries against the system's configured
// nameservers. On home networks the first nameserver is usually the
// router, which knows DHCP client hostnames that public resolvers do
// not.
type Resolver interface {
	// Reverse returns the hostname for an IP, or "" if none is known.
	Reverse(ctx context.Context, ip net.IP) string
}

// New builds a Resolver from /etc/resolv.conf. If the file cannot be
// read the returned resolver answers every query with "".
func New(log *logging.Logger) Resolver {
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("resolve")

	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cfg.Servers) == 0 {
		log.Warn("no usable nameservers, hostname resolution disabled", "error", err)
		return nopResolver{}
	}

	servers := make([]string, len(cfg.Servers))
	for i, s := range cfg.Servers {
		servers[i] = net.JoinHostPort(s, cfg.Port)
	}

	return &ptrResolver{
		client:  &dns.Client{Timeout: defaultTimeout},
		servers: servers,
		log:     log,
	}
}

type ptrResolver struct {
	client  *dns.Client
	servers []string
	log     *logging.Logger
}

func (r *ptrResolver) Reverse(ctx context.Context, ip net.IP) string {
	if ip == nil {
		return ""
	}

	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			r.log.Debug("ptr query failed", "server", server, "ip", ip.String(), "error", err)
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range in.Answer {
			if ptr, ok := rr.(*dns.PTR); ok {
				return hostnameFromPTR(ptr.Ptr)
			}
		}
	}
	return ""
}

// hostnameFromPTR strips the trailing dot and, for purely local names
// like "laptop.lan.", the router-appended search domain.
func hostnameFromPTR(target string) string {
	name := strings.TrimSuffix(target, ".")
	for _, suffix := range []string{".lan", ".local", ".home", ".localdomain"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok {
			return trimmed
		}
	}
	return name
}

type nopResolver struct{}

func (nopResolver) Reverse(context.Context, net.IP) string { return "" }

// Nop returns a resolver that never resolves. Used when hostname
// resolution is disabled in configuration.
func Nop() Resolver { return nopResolver{} }
