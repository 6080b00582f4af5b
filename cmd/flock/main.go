// Command flock opens a window on a 3D boid flock simulated by a goakt controller
// actor, on the emulated accelerator or on the CPU.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/logging"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/viewer"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

const (
	screenWidth  = 1280
	screenHeight = 800
)

type options struct {
	config     string
	backend    string
	seed       uint64
	workers    int
	sequential bool
	grid       bool
	logLevel   string
	telemetry  string
	autostart  bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.config, "config", "", "flock configuration file (.json, .yaml or .yml)")
	flag.StringVar(&o.backend, "backend", simulation.HandlerAccelerator, "initial backend: accelerator or cpu")
	flag.Uint64Var(&o.seed, "seed", 0, "random seed of the initial positions, 0 for a time based seed")
	flag.IntVar(&o.workers, "workers", 0, "accelerator worker goroutines, 0 for GOMAXPROCS")
	flag.BoolVar(&o.sequential, "sequential", false, "run accelerator work-groups one after the other")
	flag.BoolVar(&o.grid, "grid", false, "let the cpu backend find neighbours with a spatial grid")
	flag.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn, error or off")
	flag.StringVar(&o.telemetry, "telemetry", "", "write per tick statistics to this CSV file")
	flag.BoolVar(&o.autostart, "start", false, "start the simulation immediately")
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
		logger.Fatalf("flock: %v", err)
	}
}

func run(o options, logger golog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := flock.DefaultConfig()
	if o.config != "" {
		loaded, err := flock.LoadConfig(o.config)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Infof("configuration loaded from %s", o.config)
	}
	if o.seed == 0 {
		o.seed = uint64(time.Now().UnixNano())
	}

	deviceOpts := []accel.Option{accel.WithLogger(logger), accel.WithWorkers(o.workers)}
	if o.sequential {
		deviceOpts = append(deviceOpts, accel.WithSequential())
	}
	device := accel.NewEmulatedDevice(deviceOpts...)
	defer func() { _ = device.Close() }()

	sink := viewer.NewFrameSink(logger)
	handlerOpts := []flock.HandlerOption{
		flock.WithRenderer(sink),
		flock.WithLogger(logger),
		flock.WithSeed(o.seed),
	}
	cpuOpts := []flock.BackendOption{flock.WithBackendLogger(logger)}
	if o.grid {
		cpuOpts = append(cpuOpts, flock.WithNeighbourGrid())
	}
	handlers := []*flock.Handler{
		flock.NewHandler(simulation.HandlerAccelerator,
			flock.NewAcceleratorBackend(device, flock.WithBackendLogger(logger)), cfg, handlerOpts...),
		flock.NewHandler(simulation.HandlerCPU,
			flock.NewCPUBackend(cpuOpts...), cfg, handlerOpts...),
	}

	out, err := telemetry.CreateCSVFile(o.telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()
	recorder := telemetry.NewRecorder(
		telemetry.WithOutput(out),
		telemetry.WithLogger(logger),
		telemetry.WithLogEvery(600))

	controller, err := simulation.NewController(handlers,
		simulation.WithListener(sink.Listen),
		simulation.WithRecorder(recorder),
		simulation.WithGizmos(sink),
		simulation.WithLogger(logger))
	if err != nil {
		return err
	}

	system, err := actor.NewActorSystem("FlockWorld",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return err
	}
	if err := system.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = system.Stop(context.Background()) }()

	pid, err := system.Spawn(ctx, "flock-controller", controller)
	if err != nil {
		return fmt.Errorf("spawn controller: %w", err)
	}
	if o.backend != simulation.HandlerAccelerator {
		if _, err := simulation.Select(ctx, pid, o.backend); err != nil {
			return err
		}
	}
	if o.autostart {
		if _, err := simulation.Start(ctx, pid); err != nil {
			return err
		}
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Flock: 3D boids")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	game := viewer.NewGame(ctx, pid, sink, cfg, screenWidth, screenHeight, logger)
	if err := ebiten.RunGame(game); err != nil {
		return err
	}
	logger.Info("window closed")
	return nil
}
