package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	"github.com/fd1az/crosschain-arb/business/arbitrage/infra"
)

var executeRank int

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Scan once and execute the opportunity at the given rank",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := getConfig()
		if executeRank < 1 {
			return fmt.Errorf("--rank must be at least 1, got %d", executeRank)
		}

		rt, err := bootstrap(ctx, c, stderrLogger(c), os.Stderr)
		if err != nil {
			return err
		}
		defer closeRuntime(ctx, rt)

		opps, err := rt.engine.ScanOpportunities(ctx)
		if err != nil {
			return err
		}
		if executeRank > len(opps) {
			return fmt.Errorf("rank %d requested but only %d opportunities found", executeRank, len(opps))
		}
		opp := opps[executeRank-1]

		out := cmd.OutOrStdout()
		infra.WriteOpportunity(out, opp, time.Now())

		res, err := rt.engine.ExecuteOpportunity(ctx, opp.ID)
		if res != nil {
			infra.WriteExecution(out, *res)
		}
		if err != nil {
			return err
		}
		if res.Outcome != domain.OutcomeCompleted {
			return fmt.Errorf("execution ended %s", res.Outcome)
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().IntVar(&executeRank, "rank", 1, "1-based rank by net profit of the opportunity to execute")
}
