package scan

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
	"lanwatch/internal/errors"
)

// oidIPNetToMediaPhysAddress is ipNetToMediaPhysAddress from the
// RFC 1213 ipNetToMediaTable: the router's IP-to-MAC mapping. Each
// row's OID suffix is <ifIndex>.<IPv4 address>, the value the MAC.
const oidIPNetToMediaPhysAddress = ".1.3.6.1.2.1.4.22.1.2"

// SNMP reads the ARP table of a router over SNMP. Unlike the local
// strategies it sees devices on every subnet the router serves, so it
// is useful on segmented networks where the monitor host sits on only
// one VLAN. Stale router cache entries are tolerable: the departure
// debounce absorbs them.
type SNMP struct {
	cfg     config.SNMPConfig
	timeout time.Duration
}

// NewSNMP creates the router ARP-table strategy.
func NewSNMP(cfg config.SNMPConfig, timeout time.Duration) *SNMP {
	return &SNMP{cfg: cfg, timeout: timeout}
}

// Name implements Scanner.
func (s *SNMP) Name() string { return StrategySNMP }

// Verify implements Scanner.
func (s *SNMP) Verify() error {
	if s.cfg.Target == "" {
		return errors.NewScanErrorWithStrategy(errors.CodeConfiguration,
			"snmp strategy requires scan.snmp.target", StrategySNMP)
	}
	if s.cfg.Community == "" {
		return errors.NewScanErrorWithStrategy(errors.CodeConfiguration,
			"snmp strategy requires scan.snmp.community", StrategySNMP)
	}
	return nil
}

// Scan implements Scanner.
func (s *SNMP) Scan(ctx context.Context) (device.ObservationSet, error) {
	client := &gosnmp.GoSNMP{
		Target:    s.cfg.Target,
		Port:      s.cfg.Port,
		Community: s.cfg.Community,
		Version:   gosnmp.Version2c,
		Timeout:   s.timeout,
		Retries:   1,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			"connecting to "+s.cfg.Target, StrategySNMP, err)
	}
	defer client.Conn.Close()

	pdus, err := client.BulkWalkAll(oidIPNetToMediaPhysAddress)
	if err != nil {
		return nil, errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
			"walking ipNetToMediaTable", StrategySNMP, err)
	}

	now := time.Now()
	set := make(device.ObservationSet)
	for _, pdu := range pdus {
		obs, err := observationFromPDU(pdu.Name, pdu.Value, now)
		if err != nil {
			continue
		}
		set.Add(obs)
	}
	return set, nil
}

// observationFromPDU decodes one ipNetToMediaPhysAddress row. The IP
// is the last four labels of the OID, the MAC the six-byte value.
func observationFromPDU(oid string, value interface{}, at time.Time) (device.Observation, error) {
	raw, ok := value.([]byte)
	if !ok || len(raw) != 6 {
		return device.Observation{}, fmt.Errorf("value is not a 6-byte physical address")
	}

	labels := strings.Split(strings.Trim(oid, "."), ".")
	if len(labels) < 4 {
		return device.Observation{}, fmt.Errorf("oid %q too short", oid)
	}
	octets := labels[len(labels)-4:]
	parts := make([]byte, 4)
	for i, label := range octets {
		n, err := strconv.Atoi(label)
		if err != nil || n < 0 || n > 255 {
			return device.Observation{}, fmt.Errorf("oid %q has invalid address octet %q", oid, label)
		}
		parts[i] = byte(n)
	}
	ip := net.IPv4(parts[0], parts[1], parts[2], parts[3])

	mac, err := device.ParseMAC(net.HardwareAddr(raw).String())
	if err != nil || mac.IsBroadcast() || mac.IsMulticast() {
		return device.Observation{}, fmt.Errorf("invalid physical address in %q", oid)
	}

	return device.Observation{MAC: mac, IP: ip, SeenAt: at}, nil
}
