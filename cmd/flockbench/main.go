// Command flockbench runs the flock without a window. It ticks a backend through the
// controller actor and reports timings and flock statistics, or runs the accelerator
// and the CPU backends in lockstep to check that they agree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/logging"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

type options struct {
	config     string
	dump       string
	backend    string
	kernel     string
	ticks      int
	dt         time.Duration
	seed       uint64
	agents     int
	workers    int
	sequential bool
	grid       bool
	compare    bool
	tolerance  float64
	logLevel   string
	telemetry  string
	timeout    time.Duration
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.config, "config", "", "flock configuration file (.json, .yaml or .yml)")
	flag.StringVar(&o.dump, "dump-config", "", "write the effective configuration as YAML to this file")
	flag.StringVar(&o.backend, "backend", simulation.HandlerAccelerator, "backend to run: accelerator or cpu")
	flag.StringVar(&o.kernel, "kernel", flock.UpdateKernel, "accelerator kernel: "+flock.UpdateKernel+" or "+flock.KeepKernel)
	flag.IntVar(&o.ticks, "ticks", 600, "number of ticks")
	flag.DurationVar(&o.dt, "dt", time.Second/60, "simulated time per tick")
	flag.Uint64Var(&o.seed, "seed", 42, "random seed of the initial positions")
	flag.IntVar(&o.agents, "agents", 0, "override the agent count of the configuration")
	flag.IntVar(&o.workers, "workers", 0, "accelerator worker goroutines, 0 for GOMAXPROCS")
	flag.BoolVar(&o.sequential, "sequential", false, "run accelerator work-groups one after the other")
	flag.BoolVar(&o.grid, "grid", false, "let the cpu backend find neighbours with a spatial grid")
	flag.BoolVar(&o.compare, "compare", false, "run both backends in lockstep and compare positions")
	flag.Float64Var(&o.tolerance, "tolerance", 1e-4, "largest accepted position difference with -compare")
	flag.StringVar(&o.logLevel, "log-level", "warn", "debug, info, warn, error or off")
	flag.StringVar(&o.telemetry, "telemetry", "", "write per tick statistics to this CSV file")
	flag.DurationVar(&o.timeout, "timeout", 5*time.Minute, "longest wait for the queued ticks")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	logger, err := logging.New(o.logLevel, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(o, logger); err != nil {
		fmt.Fprintf(os.Stderr, "flockbench: %v\n", err)
		if errors.Is(err, simulation.ErrDiverged) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(o options, logger golog.Logger) error {
	cfg := flock.DefaultConfig()
	if o.config != "" {
		loaded, err := flock.LoadConfig(o.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.agents > 0 {
		if err := cfg.ApplyPatch(map[string]any{"numAgents": o.agents}); err != nil {
			return err
		}
	}
	if o.dump != "" {
		if err := cfg.WriteYAML(o.dump); err != nil {
			return err
		}
	}

	deviceOpts := []accel.Option{accel.WithLogger(logger), accel.WithWorkers(o.workers)}
	if o.sequential {
		deviceOpts = append(deviceOpts, accel.WithSequential())
	}
	device := accel.NewEmulatedDevice(deviceOpts...)
	defer func() { _ = device.Close() }()

	cpuOpts := []flock.BackendOption{flock.WithBackendLogger(logger)}
	if o.grid {
		cpuOpts = append(cpuOpts, flock.WithNeighbourGrid())
	}
	newHandlers := func() []*flock.Handler {
		opts := []flock.HandlerOption{flock.WithLogger(logger), flock.WithSeed(o.seed)}
		return []*flock.Handler{
			flock.NewHandler(simulation.HandlerAccelerator, flock.NewAcceleratorBackend(device,
				flock.WithBackendLogger(logger), flock.WithKernel(o.kernel)), cfg, opts...),
			flock.NewHandler(simulation.HandlerCPU, flock.NewCPUBackend(cpuOpts...), cfg, opts...),
		}
	}

	if o.compare {
		h := newHandlers()
		start := time.Now()
		cmp, err := simulation.CompareHandlers(h[0], h[1], o.ticks, o.dt.Seconds(), o.tolerance)
		fmt.Printf("compare %s vs %s, %d agents: %s in %s\n",
			h[0].Name(), h[1].Name(), cfg.NumAgents, cmp, time.Since(start).Round(time.Millisecond))
		return err
	}
	return bench(o, cfg, device, newHandlers(), logger)
}

// bench drives the controller actor with Tell ticks and waits for the mailbox to drain
// with a status request.
func bench(o options, cfg *flock.Config, device *accel.EmulatedDevice, handlers []*flock.Handler, logger golog.Logger) error {
	ctx := context.Background()

	out, err := telemetry.CreateCSVFile(o.telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	recorder := telemetry.NewRecorder(telemetry.WithOutput(out), telemetry.WithLogger(logger), telemetry.WithLogEvery(100))

	controller, err := simulation.NewController(handlers,
		simulation.WithRecorder(recorder),
		simulation.WithLogger(logger))
	if err != nil {
		return err
	}
	system, err := actor.NewActorSystem("FlockBench", actor.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := system.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = system.Stop(ctx) }()

	pid, err := system.Spawn(ctx, "flock-controller", controller)
	if err != nil {
		return err
	}
	if _, err := simulation.Select(ctx, pid, o.backend); err != nil {
		return err
	}
	if _, err := simulation.Start(ctx, pid); err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < o.ticks; i++ {
		if err := simulation.Tick(ctx, pid, o.dt); err != nil {
			return err
		}
	}
	status, err := simulation.Drain(ctx, pid, o.timeout)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	if !status.Running {
		return fmt.Errorf("simulation stopped after %d ticks, see the log", status.Ticks)
	}

	last := recorder.Last()
	fmt.Printf("backend %s, %d agents, %d ticks in %s (%.1f ticks/s)\n",
		status.Handler, cfg.NumAgents, status.Ticks, elapsed.Round(time.Millisecond),
		float64(status.Ticks)/elapsed.Seconds())
	fmt.Printf("speed %.3f ± %.3f (max %.3f), distance to center %.3f (p50 %.3f, p90 %.3f, max %.3f), outside %d\n",
		last.SpeedMean, last.SpeedStd, last.SpeedMax,
		last.DistanceMean, last.DistanceP50, last.DistanceP90, last.DistanceMax, last.Outside)
	if status.Handler == simulation.HandlerAccelerator {
		dispatches, items := device.Stats()
		fmt.Printf("device: %d dispatches, %d work items\n", dispatches, items)
	}
	_, err = simulation.Stop(ctx, pid)
	return err
}
