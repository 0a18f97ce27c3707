package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/fd1az/crosschain-arb/business/arbitrage/infra"
	"github.com/fd1az/crosschain-arb/internal/config"
	"github.com/fd1az/crosschain-arb/pkg/ui"
)

const shutdownTimeout = 15 * time.Second

var runTUI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine continuously: monitor chains, scan, and optionally auto-execute",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		c.TUIMode = runTUI
		if runTUI {
			return runWithTUI(cmd.Context(), c)
		}
		return runHeadless(cmd.Context(), c, cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the interactive dashboard instead of console output")
}

func runHeadless(ctx context.Context, c *config.Config, out io.Writer) error {
	log := stderrLogger(c)
	log.Info(ctx, "starting cross-chain arbitrage engine",
		"version", build.Version,
		"environment", c.App.Environment,
	)

	rt, err := bootstrap(ctx, c, log, os.Stderr, infra.NewConsoleReporter(out))
	if err != nil {
		return err
	}
	return rt.serve(ctx)
}

// serve runs health monitoring and the engine until ctx is done, then shuts
// everything down.
func (rt *runtime) serve(ctx context.Context) error {
	rt.startHealth(ctx)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.mgr.Start(monitorCtx)
	}()

	var errs []error
	if err := rt.engine.Start(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to start engine: %w", err))
	} else {
		rt.replayHealth(ctx)
		rt.log.Info(ctx, "engine running", "chains", len(rt.mgr.AvailableChains()))
		<-ctx.Done()
		rt.log.Info(ctx, "shutting down")
		if err := rt.engine.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("engine stop: %w", err))
		}
	}

	stopMonitor()
	wg.Wait()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := rt.close(sctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// runWithTUI shows the dashboard immediately and starts modules once the
// welcome screen is dismissed.
func runWithTUI(ctx context.Context, c *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, 0, len(c.Chains))
	for _, ch := range c.Chains {
		names = append(names, ch.Name)
	}

	startSignal := make(chan struct{}, 1)
	prog := ui.NewProgram(ui.New(names, func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}))

	// Log lines would corrupt the alt screen; warnings and errors are shown
	// in the dashboard instead.
	log := newLogger(c, io.Discard, ui.LogEvents(prog))
	reporter := infra.NewTUIReporter(prog, nil)

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		prog.Send(ui.StartupMsg{Step: "config", Status: "done"})
		for _, n := range names {
			prog.Send(ui.StartupMsg{Step: n, Status: "connecting"})
		}

		rt, err := bootstrap(ctx, c, log, io.Discard, reporter)
		if err != nil {
			prog.Send(ui.StartupMsg{Step: "engine", Status: "failed", Message: err.Error()})
			errCh <- err
			return
		}
		reporter.SetStats(rt.engine.GetStatistics)
		errCh <- rt.serve(ctx)
	}()

	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	runErr := prog.Run()
	cancel()

	var botErr error
	select {
	case botErr = <-errCh:
	case <-time.After(shutdownTimeout):
		botErr = errors.New("shutdown timed out")
	}
	if runErr != nil {
		return errors.Join(fmt.Errorf("TUI error: %w", runErr), botErr)
	}
	return botErr
}
