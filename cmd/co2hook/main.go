package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speedwagon-io/co2hook/internal/api"
	"github.com/speedwagon-io/co2hook/internal/collector"
	"github.com/speedwagon-io/co2hook/internal/config"
	"github.com/speedwagon-io/co2hook/internal/health"
	"github.com/speedwagon-io/co2hook/internal/hooks"
	"github.com/speedwagon-io/co2hook/internal/lib/logger/sl"
	"github.com/speedwagon-io/co2hook/internal/metrics"
	"github.com/speedwagon-io/co2hook/internal/model"
	"github.com/speedwagon-io/co2hook/internal/publish"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("co2hook", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to config file")
	port := flags.String("port", "", "serial port of the sensor; overrides the configured source")
	once := flags.Bool("once", false, "take a single reading, print it and exit")
	listPorts := flags.Bool("list-ports", false, "list candidate serial ports and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *listPorts {
		printPorts(os.Stdout)
		return 0
	}

	cfg, err := loadConfig(*configPath, *port)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "specify a sensor with -port <port> or a config file with -config <path>")
		printPorts(os.Stderr)
		return 1
	}

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	wd, _ := os.Getwd()
	log.Info("starting co2hook",
		slog.String("env", cfg.Env),
		slog.String("source", cfg.Source.Kind),
		slog.String("hooks_dir", cfg.Hooks.Dir),
		slog.String("working_dir", wd),
	)

	if _, err := cfg.Source.Resolve(); err != nil {
		log.Warn("source configuration is invalid; every acquisition will fail", sl.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	dispatcher := hooks.NewDispatcher(log, cfg.Hooks.Dir, cfg.Hooks.Timeout)
	opts := []collector.Option{collector.WithObserver(recorder)}

	var publisher *publish.MQTTPublisher
	if cfg.MQTT.Enabled {
		publisher, err = publish.Connect(log, cfg.MQTT)
		if err != nil {
			log.Error("mqtt disabled", sl.Err(err))
		} else {
			defer publisher.Close()
			opts = append(opts, collector.WithPublisher(publisher))
		}
	}

	orchestrator := collector.NewOrchestrator(log, collector.DefaultFactory(log, cfg.HTTP.Timeout), dispatcher, opts...)

	if *once {
		acq, err := orchestrator.HandleAcquisitionRequest(ctx, cfg.Source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s error: %v\n", model.CategoryOf(err), err)
			return 1
		}
		fmt.Println(acq.Reading)
		return 0
	}

	server := health.NewServer(log, cfg.Server.Address)
	server.AddChecker(health.NewAcquisitionHealthChecker(orchestrator.Last))
	if publisher != nil {
		server.AddChecker(health.NewPublisherHealthChecker(publisher.Connected))
	}
	server.Mount(api.NewHandler(log, orchestrator, cfg.Source).Routes)
	server.Mount(func(r chi.Router) {
		r.Method(http.MethodGet, "/metrics", recorder.Handler())
	})

	if err := server.Start(); err != nil {
		log.Error("failed to start server", sl.Err(err))
		return 1
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("failed to stop server", sl.Err(err))
	}

	log.Info("co2hook stopped")
	return 0
}

// loadConfig reads the config file. With a port flag the file is optional
// and the source is forced to that serial port.
func loadConfig(configPath, port string) (*config.Config, error) {
	if port == "" {
		return config.Load(config.Path(configPath))
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Defaults()
	}
	if err != nil {
		return nil, err
	}

	cfg.Source = config.SourceConfig{Kind: string(model.KindSerial), Port: port}
	return cfg, nil
}
