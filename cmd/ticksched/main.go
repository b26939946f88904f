package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ticktask/internal/job"
	"ticktask/internal/logging"
	"ticktask/internal/sched"
)

var version = "dev"

// errInterrupted ends a run on SIGINT or SIGTERM; it is not reported as a
// failure.
var errInterrupted = errors.New("interrupted")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ticksched",
		Short:        "Run frame-driven task scripts",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		cfgPath string
		ticks   int64
		trace   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo script until it finishes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sched.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("ticks") {
				cfg.MaxTicks = ticks
			}
			if trace != "" {
				cfg.TraceCSV = trace
			}
			return run(cmd.Context(), cfg, cmd)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "config.yml", "path to the YAML config")
	cmd.Flags().Int64Var(&ticks, "ticks", 0, "stop after this many ticks (0 = no limit)")
	cmd.Flags().StringVar(&trace, "trace", "", "write scheduler events to this CSV file")
	return cmd
}

func run(parent context.Context, cfg sched.Config, cmd *cobra.Command) error {
	logger, err := logging.FromConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.Debug("loaded config", "config", fmt.Sprintf("%+v", cfg))

	s := sched.New(cfg, logger)
	driver, err := sched.NewDriver(s, cfg)
	if err != nil {
		return err
	}

	counts := map[sched.StatusKind]int{}
	var tr *sched.CSVTrace
	if cfg.TraceCSV != "" {
		if tr, err = sched.NewCSVTrace(cfg.TraceCSV); err != nil {
			return err
		}
	}
	s.SetObserver(func(ev sched.StatusEvent) {
		counts[ev.Kind]++
		if tr != nil {
			tr.Observe(ev)
		}
	})

	spawnDemo(s, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// the driver goroutine is the only one touching s
	g.Go(func() error {
		defer cancel()
		err := driver.Run(gctx)
		if n := s.StopAll(); n > 0 {
			logger.Info("stopped remaining tasks", "count", n)
		}
		return err
	})
	g.Go(func() error { return watchSignals(gctx, sig, logger) })

	err = g.Wait()
	if errors.Is(err, errInterrupted) || errors.Is(err, context.Canceled) {
		err = nil
	}

	if tr != nil {
		if cerr := tr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ticks=%d started=%d finished=%d failed=%d cancelled=%d\n",
		driver.Ticks(), counts[sched.StatusStart], counts[sched.StatusFinish],
		counts[sched.StatusFail], counts[sched.StatusCancel])
	return err
}

// watchSignals returns errInterrupted when a signal arrives, cancelling the
// run, or nil once ctx ends.
func watchSignals(ctx context.Context, sig <-chan os.Signal, logger *slog.Logger) error {
	select {
	case s := <-sig:
		logger.Info("stopping on signal", "signal", s.String())
		return errInterrupted
	case <-ctx.Done():
		return nil
	}
}

// spawnDemo registers a short script: a blinking light, a countdown, a task
// waiting on a flag with a timeout, and a joiner waiting for all of them.
func spawnDemo(s *sched.Scheduler, logger *slog.Logger) {
	blink := sched.Spawn(s, job.Blink(250, 4, logger))
	count := sched.Spawn(s, job.Countdown(5, func(left int) {
		logger.Info("countdown", "left", left)
	}))

	ready := false
	setter := sched.Spawn(s, job.Sequence(job.Sleep(400), func(*sched.Co) error {
		ready = true
		return nil
	}))
	waiter := sched.Spawn(s, func(co *sched.Co) error {
		if !co.WaitUntilOrTimeout(func() bool { return ready }, 2000) {
			return errors.New("flag never set")
		}
		co.Logger().Info("flag observed", "frame", co.Frame())
		return nil
	})

	sched.SpawnWith(s, func(ids []sched.TaskID) sched.TaskFunc {
		return job.Sequence(job.Join(ids...), func(co *sched.Co) error {
			co.Logger().Info("all demo tasks done", "frame", co.Frame())
			return nil
		})
	}, []sched.TaskID{blink, count, setter, waiter})
}
