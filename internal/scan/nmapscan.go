package scan

import (
	"context"
	"net"
	"os/exec"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"lanwatch/internal/device"
	"lanwatch/internal/errors"
)

const nmapBinary = "nmap"

// NmapScan discovers hosts with an nmap ping sweep (-sn). Run as root
// the sweep uses ARP on the local segment and reports MAC addresses;
// unprivileged runs fall back to ICMP/TCP probes, which see fewer
// devices and no MACs, so those results are effectively empty for
// presence purposes.
type NmapScan struct {
	iface   string
	subnets []string
	timeout time.Duration
}

// NewNmapScan creates the nmap ping-sweep strategy.
func NewNmapScan(iface string, subnets []string, timeout time.Duration) *NmapScan {
	return &NmapScan{
		iface:   iface,
		subnets: subnets,
		timeout: timeout,
	}
}

// Name implements Scanner.
func (s *NmapScan) Name() string { return StrategyNmap }

// Verify implements Scanner.
func (s *NmapScan) Verify() error {
	if _, err := exec.LookPath(nmapBinary); err != nil {
		return errors.ErrToolUnavailable(StrategyNmap, nmapBinary)
	}
	if len(s.subnets) == 0 {
		return errors.NewScanErrorWithStrategy(errors.CodeConfiguration,
			"nmap strategy requires explicit subnets", StrategyNmap)
	}
	return nil
}

// Scan implements Scanner.
func (s *NmapScan) Scan(ctx context.Context) (device.ObservationSet, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	options := []nmap.Option{
		nmap.WithTargets(s.subnets...),
		nmap.WithPingScan(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
	}
	if s.iface != "" {
		options = append(options, nmap.WithInterface(s.iface))
	}

	scanner, err := nmap.NewScanner(ctx, options...)
	if err != nil {
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			"creating nmap scanner", StrategyNmap, err)
	}

	result, _, err := scanner.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrScanTimeout(StrategyNmap)
		}
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			"nmap sweep failed", StrategyNmap, err)
	}

	now := time.Now()
	set := make(device.ObservationSet)
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var ip net.IP
		var mac device.MAC
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = net.ParseIP(addr.Addr)
			case "mac":
				if m, err := device.ParseMAC(addr.Addr); err == nil {
					mac = m
				}
			}
		}
		if mac == "" || mac.IsBroadcast() || mac.IsMulticast() {
			continue
		}
		set.Add(device.Observation{MAC: mac, IP: ip, SeenAt: now})
	}
	return set, nil
}
