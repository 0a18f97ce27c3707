package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/crosschain-arb/business/arbitrage/infra"
)

var scanLimit int

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan and print the opportunities found",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := getConfig()

		rt, err := bootstrap(ctx, c, stderrLogger(c), os.Stderr)
		if err != nil {
			return err
		}
		defer closeRuntime(ctx, rt)

		opps, err := rt.engine.ScanOpportunities(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(opps) == 0 {
			fmt.Fprintf(out, "No profitable opportunities across %d available chains\n", len(rt.mgr.AvailableChains()))
			return nil
		}
		if scanLimit > 0 && len(opps) > scanLimit {
			opps = opps[:scanLimit]
		}
		now := time.Now()
		for i, opp := range opps {
			fmt.Fprintf(out, "\n#%d", i+1)
			infra.WriteOpportunity(out, opp, now)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "Print at most N opportunities (0 for all)")
}

func closeRuntime(ctx context.Context, rt *runtime) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := rt.close(sctx); err != nil {
		rt.log.Warn(sctx, "shutdown", "error", err)
	}
}
