package scan

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"lanwatch/internal/device"
	"lanwatch/internal/errors"
)

const procNetARP = "/proc/net/arp"

// ArpTable reads the kernel's ARP cache instead of probing the
// network. It needs no privileges and no external tools, which makes
// it the fallback of last resort, but it only sees devices the host
// has recently exchanged traffic with, so sparse results are expected.
type ArpTable struct{}

// NewArpTable creates the passive ARP-cache strategy.
func NewArpTable() *ArpTable { return &ArpTable{} }

// Name implements Scanner.
func (s *ArpTable) Name() string { return StrategyArpTable }

// Verify implements Scanner.
func (s *ArpTable) Verify() error {
	if runtime.GOOS == "linux" {
		if _, err := os.Stat(procNetARP); err != nil {
			return errors.WrapScanErrorWithStrategy(errors.CodeToolUnavailable,
				procNetARP+" not readable", StrategyArpTable, err)
		}
		return nil
	}
	if _, err := exec.LookPath("arp"); err != nil {
		return errors.ErrToolUnavailable(StrategyArpTable, "arp")
	}
	return nil
}

// Scan implements Scanner.
func (s *ArpTable) Scan(ctx context.Context) (device.ObservationSet, error) {
	if runtime.GOOS == "linux" {
		f, err := os.Open(procNetARP)
		if err != nil {
			return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
				"reading "+procNetARP, StrategyArpTable, err)
		}
		defer f.Close()
		return parseProcNetARP(f, time.Now()), nil
	}

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			"arp -a failed", StrategyArpTable, err)
	}
	return parseDarwinARP(bytes.NewReader(out), time.Now()), nil
}

// parseProcNetARP reads the Linux ARP cache. Each payload line is
// "IP HWtype Flags MAC Mask Device"; incomplete entries carry an
// all-zero MAC and are skipped.
func parseProcNetARP(r io.Reader, at time.Time) device.ObservationSet {
	set := make(device.ObservationSet)
	scanner := bufio.NewScanner(r)

	// Header line.
	if !scanner.Scan() {
		return set
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}

		macStr := fields[3]
		if macStr == "00:00:00:00:00:00" || macStr == "<incomplete>" {
			continue
		}

		ip := net.ParseIP(fields[0])
		if ip == nil || ip.To4() == nil {
			continue
		}

		mac, err := device.ParseMAC(macStr)
		if err != nil || mac.IsBroadcast() || mac.IsMulticast() {
			continue
		}

		set.Add(device.Observation{MAC: mac, IP: ip, SeenAt: at})
	}
	return set
}

// parseDarwinARP reads `arp -a` output, one entry per line:
// "hostname (192.168.1.1) at aa:bb:cc:dd:ee:ff [ethernet] on en0".
func parseDarwinARP(r io.Reader, at time.Time) device.ObservationSet {
	set := make(device.ObservationSet)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		ipStart := strings.Index(line, "(")
		ipEnd := strings.Index(line, ")")
		if ipStart == -1 || ipEnd == -1 || ipStart >= ipEnd {
			continue
		}
		ip := net.ParseIP(line[ipStart+1 : ipEnd])
		if ip == nil || ip.To4() == nil {
			continue
		}

		atIdx := strings.Index(line, " at ")
		if atIdx == -1 {
			continue
		}
		rest := line[atIdx+4:]
		if end := strings.IndexAny(rest, " ["); end != -1 {
			rest = rest[:end]
		}
		macStr := strings.TrimSpace(rest)
		if macStr == "" || macStr == "(incomplete)" {
			continue
		}

		mac, err := device.ParseMAC(macStr)
		if err != nil || mac.IsBroadcast() || mac.IsMulticast() {
			continue
		}

		set.Add(device.Observation{MAC: mac, IP: ip, SeenAt: at})
	}
	return set
}
