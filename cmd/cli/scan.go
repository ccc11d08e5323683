package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"lanwatch/internal/registry"
	"lanwatch/internal/scan"
)

var scanStrategy string

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Perform a single network sweep and print the result",
	Long: `Sweep the network once with the configured strategies and print the
devices found. No presence state is kept and no notifications are sent;
this is a diagnostic for checking scanner configuration and privileges.`,
	Example: `  lanwatch scan
  lanwatch scan --strategy arp-table`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanStrategy, "strategy", "",
		"use a single strategy instead of the configured chain")
	rootCmd.AddCommand(scanCmd)
}

func runScan(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	if scanStrategy != "" {
		cfg.Scan.Strategies = []string{scanStrategy}
	}

	chain, err := scan.NewChain(cfg.Scan, logger)
	if err != nil {
		return err
	}
	if err := chain.Verify(); err != nil {
		return err
	}

	reg, err := registry.New(cfg.Devices)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scan.Timeout)
	defer cancel()

	start := time.Now()
	set, strategy, err := chain.Scan(ctx)
	if err != nil {
		return err
	}

	macs := set.MACs()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("MAC", "IP", "Name", "Ignored")
	for _, mac := range macs {
		obs := set[mac]
		policy := reg.Classify(mac)
		name := ""
		if reg.Named(mac) {
			name = policy.DisplayName
		}
		ignored := ""
		if reg.Ignored(mac) {
			ignored = "yes"
		}
		ip := ""
		if obs.IP != nil {
			ip = obs.IP.String()
		}
		_ = table.Append([]string{string(mac), ip, name, ignored})
	}
	_ = table.Render()

	fmt.Printf("\n%d devices found via %s in %s\n",
		len(macs), strategy, time.Since(start).Round(time.Millisecond))

	unknown := 0
	for _, mac := range macs {
		if !reg.Named(mac) && !reg.Ignored(mac) {
			unknown++
		}
	}
	if unknown > 0 {
		fmt.Printf("%d devices have no configured name\n", unknown)
	}
	return nil
}
