package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"avaneesh/pnio-go/pkg/channel"
	"avaneesh/pnio-go/pkg/config"
	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/diag"
	"avaneesh/pnio-go/pkg/persist"
	"avaneesh/pnio-go/pkg/pnio"
	"avaneesh/pnio-go/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pnio-device: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, flush, err := pnio.NewLogger(cfg.Logging.Backend, cfg.Logging.Level, "pnio-device")
	if err != nil {
		return err
	}
	defer flush()

	factory, err := cfg.Device.Identity()
	if err != nil {
		return err
	}

	store, err := persist.Open(cfg.Persistence.Backend, cfg.Persistence.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	identity, err := persist.LoadOr(store, factory)
	if err != nil {
		log.Warn("Stored identity ignored: %v", err)
	}
	log.Info("Station identity: %s", &identity)

	physical, peer, err := openPhysical(cfg)
	if err != nil {
		return err
	}
	if cfg.Capture.Enabled {
		f, err := os.Create(cfg.Capture.Path)
		if err != nil {
			physical.Close()
			return fmt.Errorf("capture: %w", err)
		}
		capture, err := channel.NewCaptureChannel(physical, f)
		if err != nil {
			f.Close()
			physical.Close()
			return fmt.Errorf("capture: %w", err)
		}
		physical = capture
		log.Info("Capturing frames to %s", cfg.Capture.Path)
	}

	ch := channel.New(cfg.Channel.Type, physical, log,
		channel.WithWriteQueue(cfg.Channel.WriteQueue),
		channel.WithFrameDebug(cfg.Channel.FrameDebug),
	)

	image := cyclic.NewImageBuffer()
	device := pnio.New(pnio.Config{
		Identity:   identity,
		Discovery:  cfg.Discovery(factory),
		MaxARs:     cfg.Cyclic.MaxARs,
		FrameIDMin: cfg.Cyclic.FrameIDMin,
		FrameIDMax: cfg.Cyclic.FrameIDMax,
	}, ch, image,
		pnio.WithLogger(log),
		pnio.WithPersister(store),
		pnio.WithDelaySource(cfg.Delay(time.Now().UnixNano())),
		pnio.WithIndicator(blinker{log}),
		pnio.WithIdentityListener(func(old, updated types.StationIdentity) {
			log.Info("Identity changed: %s -> %s", &old, &updated)
		}),
		pnio.WithListener(watchdogLogger{log}),
	)

	runner := pnio.NewRunner(device,
		pnio.WithTickInterval(cfg.Cyclic.TickInterval),
		pnio.WithQueueDepth(cfg.Cyclic.QueueDepth),
		pnio.WithRunnerLogger(log),
	)
	ch.SetHandler(runner)

	if err := ch.Open(); err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })

	g.Go(func() error {
		for i, ac := range cfg.ARs {
			ar, err := ac.AR()
			if err != nil {
				return fmt.Errorf("ars[%d]: %w", i, err)
			}
			h, err := runner.EstablishAR(ctx, ar)
			if err != nil {
				return fmt.Errorf("establish AR %s: %w", ar.UUID, err)
			}
			log.Info("AR %s established as %s", ar.UUID, h)
		}
		return nil
	})

	if peer != nil {
		g.Go(func() error { return loopbackController(ctx, peer, log) })
	}

	if cfg.Diag.Enabled {
		srv := diag.NewServer(cfg.Diag.Address, runner, diag.WithChannel(ch), diag.WithLogger(log))
		if _, err := srv.Start(); err != nil {
			return fmt.Errorf("diagnostics: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("Device stopped: %+v", runner.Statistics().Frames)
	return err
}

// openPhysical opens the configured medium. For "loopback" it also returns
// the controller end of the in-memory pipe.
func openPhysical(cfg *config.Config) (channel.PhysicalChannel, *channel.PipeChannel, error) {
	c := cfg.Channel
	switch c.Type {
	case "udp":
		p, err := channel.NewUDPChannel(channel.UDPChannelConfig{Address: c.Address, IsServer: c.Server})
		return p, nil, err
	case "tcp":
		p, err := channel.NewTCPChannel(channel.TCPChannelConfig{Address: c.Address, IsServer: c.Server})
		return p, nil, err
	case "quic":
		p, err := channel.NewQUICChannel(channel.QUICChannelConfig{Address: c.Address, IsServer: c.Server})
		return p, nil, err
	case "loopback":
		device, controller := channel.NewPipe(cfg.Cyclic.QueueDepth)
		return device, controller, nil
	default:
		return nil, nil, fmt.Errorf("unknown channel type %q", c.Type)
	}
}
