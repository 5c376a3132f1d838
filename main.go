package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"drmonitor/internal/config"
	"drmonitor/internal/instance"
	"drmonitor/internal/logging"
	"drmonitor/internal/metrics"
	"drmonitor/internal/supervisor"
	"drmonitor/internal/ui/dashboard"
)

var BuildVersion = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	opts, settingsPath, err := config.Load(os.Args[1:])
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if opts.SaveSettings {
		if settingsPath == "" {
			fmt.Fprintln(os.Stderr, "no settings file location available; pass --config")
			return 2
		}
		if err := config.SaveSettings(settingsPath, config.SettingsFromOptions(opts)); err != nil {
			fmt.Fprintln(os.Stderr, "failed to save settings:", err)
			return 1
		}
		fmt.Println("settings saved to", settingsPath)
		return 0
	}

	if err := config.Validate(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := logging.New(opts.Debug)
	defer func() {
		_ = logger.Close()
	}()
	if opts.LogToFile {
		if err := logger.EnableFilePersistence("", 0); err != nil {
			logger.Warn("failed to enable file log persistence", logging.Field("error", err))
		}
	}

	lock, err := instance.Acquire(opts.Port)
	if err != nil {
		if errors.Is(err, instance.ErrHeld) {
			fmt.Fprintf(os.Stderr, "port %d: %v\n", opts.Port, err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "failed to initialize single-instance lock:", err)
		return 2
	}
	defer func() {
		_ = lock.Release()
	}()

	m := metrics.New()
	supOpts := supervisorOptions(opts)
	if opts.TUI {
		err = dashboard.Run(rootCtx, BuildVersion, supOpts, logger, m)
	} else {
		logger.Info("starting drmonitor", logging.Field("version", BuildVersion), logging.Field("path", opts.Path()))
		err = supervisor.New(supOpts, logger, m, supervisor.Hooks{}).Run(rootCtx)
	}
	if err != nil {
		logger.Error("drmonitor stopped", logging.Field("error", err))
		return 1
	}
	return 0
}

func supervisorOptions(opts config.Options) supervisor.Options {
	return supervisor.Options{
		Parent:          opts.Path(),
		Addr:            opts.Addr(),
		SampleThreshold: opts.SampleThreshold,
		OnlyChannel:     opts.OnlyChannel,
		Watch:           opts.Watch,
		MetricsListen:   opts.MetricsListen,
	}
}
