// Package scan provides the network scanning strategies that feed the
// presence tracker. Each strategy produces one observation set per
// invocation: the MAC addresses (with their current IPs) visible on the
// local network at that moment. Strategies differ in privilege and tool
// requirements, so they are composed into an ordered fallback chain
// that tries the preferred strategy first and degrades gracefully.
package scan

import (
	"context"
	"fmt"
	"time"

	"lanwatch/internal/config"
	"lanwatch/internal/device"
	"lanwatch/internal/errors"
	"lanwatch/internal/logging"
)

// Strategy names accepted in configuration.
const (
	StrategyArpScan  = "arp-scan"
	StrategyNmap     = "nmap"
	StrategyArpTable = "arp-table"
	StrategySNMP     = "snmp"
)

// Scanner is a single scanning strategy.
type Scanner interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Verify reports whether the strategy can run on this host, for
	// example whether its external tool is installed. It is called
	// once at startup so misconfiguration surfaces before the first
	// cycle instead of during it.
	Verify() error

	// Scan performs one sweep and returns every device observed.
	// An error means the sweep produced no usable result; a partial
	// result with no error is allowed.
	Scan(ctx context.Context) (device.ObservationSet, error)
}

// Chain runs scanners in priority order, returning the first successful
// result. A strategy failure is logged and the next strategy tried;
// only when every strategy fails does the cycle itself fail.
type Chain struct {
	scanners []Scanner
	log      *logging.Logger
}

// NewChain builds a fallback chain from the configured strategy names.
func NewChain(cfg config.ScanConfig, log *logging.Logger) (*Chain, error) {
	if log == nil {
		log = logging.Default()
	}
	if len(cfg.Strategies) == 0 {
		return nil, errors.NewConfigError(errors.CodeConfiguration, "no scan strategies configured")
	}

	scanners := make([]Scanner, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		s, err := newScanner(name, cfg)
		if err != nil {
			return nil, err
		}
		scanners = append(scanners, s)
	}

	return &Chain{
		scanners: scanners,
		log:      log.WithComponent("scan"),
	}, nil
}

func newScanner(name string, cfg config.ScanConfig) (Scanner, error) {
	switch name {
	case StrategyArpScan:
		return NewArpScan(cfg.Interface, cfg.Subnets, cfg.Timeout), nil
	case StrategyNmap:
		return NewNmapScan(cfg.Interface, cfg.Subnets, cfg.Timeout), nil
	case StrategyArpTable:
		return NewArpTable(), nil
	case StrategySNMP:
		return NewSNMP(cfg.SNMP, cfg.Timeout), nil
	default:
		return nil, errors.NewConfigError(errors.CodeValidation,
			fmt.Sprintf("unknown scan strategy %q", name))
	}
}

// Verify checks every strategy and returns an error only if none is
// usable. Unusable strategies are logged and skipped at scan time.
func (c *Chain) Verify() error {
	var lastErr error
	usable := 0
	for _, s := range c.scanners {
		if err := s.Verify(); err != nil {
			c.log.Warn("scan strategy unavailable",
				"strategy", s.Name(),
				"error", err)
			lastErr = err
			continue
		}
		usable++
	}
	if usable == 0 {
		return errors.WrapScanErrorWithStrategy(errors.CodeToolUnavailable,
			"no usable scan strategy", "chain", lastErr)
	}
	return nil
}

// Scan runs the chain once. The result carries the name of the
// strategy that produced it so cycles can report which path was taken.
func (c *Chain) Scan(ctx context.Context) (device.ObservationSet, string, error) {
	var lastErr error
	for i, s := range c.scanners {
		start := time.Now()
		set, err := s.Scan(ctx)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				// The deadline is shared across the chain; no
				// point trying the remaining strategies.
				break
			}
			if i < len(c.scanners)-1 {
				c.log.Warn("scan strategy failed, falling back",
					"strategy", s.Name(),
					"next", c.scanners[i+1].Name(),
					"error", err)
			}
			continue
		}
		c.log.Debug("scan complete",
			"strategy", s.Name(),
			"devices", len(set),
			"duration", time.Since(start))
		return set, s.Name(), nil
	}
	return nil, "", errors.WrapScanErrorWithStrategy(errors.CodeScanFailed,
		"all scan strategies failed", "chain", lastErr)
}

// Names returns the configured strategy names in priority order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.scanners))
	for i, s := range c.scanners {
		names[i] = s.Name()
	}
	return names
}
