package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Probe every configured chain and print its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := getConfig()

		rt, err := bootstrap(ctx, c, stderrLogger(c), os.Stderr)
		if err != nil {
			return err
		}
		defer closeRuntime(ctx, rt)

		writeChains(cmd.OutOrStdout(), rt.mgr.Snapshot())
		return nil
	},
}

func writeChains(w io.Writer, snaps []chainDomain.ChainSnapshot) {
	fmt.Fprintf(w, "%-10s %8s %-5s %-9s %8s %12s %12s  %s\n",
		"CHAIN", "ID", "LAYER", "STATUS", "LATENCY", "BLOCK", "GAS (gwei)", "ENDPOINT")
	for _, s := range snaps {
		status := "healthy"
		if !s.Health.IsHealthy {
			status = "down"
		}
		fmt.Fprintf(w, "%-10s %8d %-5s %-9s %6dms %12d %12s  %s\n",
			s.Handle.Name,
			s.Handle.ChainID,
			s.Handle.Layer,
			status,
			s.Health.LatencyMs,
			s.Health.LastObservedBlock,
			s.Health.CurrentGasPrice.StringFixed(3),
			s.Health.ActiveEndpoint,
		)
		if !s.Health.IsHealthy && s.Health.LastError != "" {
			fmt.Fprintf(w, "%-10s error: %s\n", "", s.Health.LastError)
		}
	}
}
