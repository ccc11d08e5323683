package scan

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os/exec"
	"strings"
	"time"

	"lanwatch/internal/device"
	"lanwatch/internal/errors"
)

const arpScanBinary = "arp-scan"

// ArpScan sweeps subnets with the arp-scan tool. This is the preferred
// strategy: ARP requests reach every device on the local segment
// regardless of firewalls, but the tool needs raw socket privileges.
type ArpScan struct {
	iface   string
	subnets []string
	timeout time.Duration
}

// NewArpScan creates the arp-scan strategy. With no subnets the tool's
// own interface-derived localnet is swept.
func NewArpScan(iface string, subnets []string, timeout time.Duration) *ArpScan {
	return &ArpScan{
		iface:   iface,
		subnets: subnets,
		timeout: timeout,
	}
}

// Name implements Scanner.
func (s *ArpScan) Name() string { return StrategyArpScan }

// Verify implements Scanner.
func (s *ArpScan) Verify() error {
	if _, err := exec.LookPath(arpScanBinary); err != nil {
		return errors.ErrToolUnavailable(StrategyArpScan, arpScanBinary)
	}
	return nil
}

// Scan implements Scanner. Each configured subnet is swept with a
// separate arp-scan invocation and the results merged; a device
// answering in any subnet counts as observed.
func (s *ArpScan) Scan(ctx context.Context) (device.ObservationSet, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	targets := s.subnets
	if len(targets) == 0 {
		targets = []string{"--localnet"}
	}

	set := make(device.ObservationSet)
	for _, target := range targets {
		out, err := s.run(ctx, target)
		if err != nil {
			return nil, err
		}
		set.Merge(parseArpScanOutput(out, time.Now()))
	}
	return set, nil
}

func (s *ArpScan) run(ctx context.Context, target string) ([]byte, error) {
	args := []string{"--interface=" + s.iface, "--numeric", "--ignoredups", "--quiet", target}
	cmd := exec.CommandContext(ctx, arpScanBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ErrScanTimeout(StrategyArpScan)
		}
		msg := stderr.String()
		if strings.Contains(msg, "Operation not permitted") || strings.Contains(msg, "permission") {
			return nil, errors.ErrPermissionDenied(StrategyArpScan, err)
		}
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			arpScanBinary+" failed", StrategyArpScan, err).
			WithContext("stderr", strings.TrimSpace(msg)).
			WithContext("target", target)
	}
	return stdout.Bytes(), nil
}

// parseArpScanOutput extracts IP/MAC pairs from arp-scan stdout. The
// payload lines are tab-separated "IP<TAB>MAC[<TAB>vendor]"; header,
// footer, and anything unparseable is skipped so one mangled line
// never discards a whole sweep.
func parseArpScanOutput(out []byte, at time.Time) device.ObservationSet {
	set := make(device.ObservationSet)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		ip := net.ParseIP(fields[0])
		if ip == nil || ip.To4() == nil {
			continue
		}

		mac, err := device.ParseMAC(fields[1])
		if err != nil || mac.IsBroadcast() || mac.IsMulticast() {
			continue
		}

		set.Add(device.Observation{MAC: mac, IP: ip, SeenAt: at})
	}
	return set
}
