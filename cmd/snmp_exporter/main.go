// Command snmp_exporter polls SNMP agents, resolves their labels through the
// template/label pipeline, and exposes the results as Prometheus metrics
// and/or pushes them to InfluxDB.
//
// Usage:
//
//	snmp_exporter [flags]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/netmetrics/snmp-label-exporter/internal/config"
	"github.com/netmetrics/snmp-label-exporter/internal/orchestrator"
	"github.com/netmetrics/snmp-label-exporter/internal/sink"
	"github.com/netmetrics/snmp-label-exporter/internal/sink/influxsink"
	"github.com/netmetrics/snmp-label-exporter/internal/sink/promsink"
	"github.com/netmetrics/snmp-label-exporter/internal/snmpclient"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		filename   string
		logLevel   string
		listenAddr string
		path       string
		checkOnly  bool
		maxThreads int
	)

	pflag.StringVarP(&filename, "filename", "f", "snmp.yaml", "configuration file path")
	pflag.StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warning, error")
	pflag.StringVar(&listenAddr, "listen", ":9100", "Prometheus exposition listen address")
	pflag.StringVar(&path, "path", "/metrics", "Prometheus exposition path")
	pflag.BoolVarP(&checkOnly, "check", "c", false, "validate configuration and exit")
	pflag.IntVarP(&maxThreads, "max-threads", "M", 1, "scheduler worker pool size")
	pflag.Parse()

	logger, err := buildLogger(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snmp_exporter: %v\n", err)
		return 1
	}

	cfg, err := config.Load(filename, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snmp_exporter: %v\n", err)
		return 1
	}

	if checkOnly {
		logger.Info("snmp_exporter: configuration is valid", "hosts", len(cfg.Hosts), "modules", len(cfg.Modules))
		return 0
	}

	snk, err := buildSink(cfg, listenAddr, path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snmp_exporter: %v\n", err)
		return 1
	}

	client := snmpclient.NewClient(nil)
	orch := orchestrator.New(cfg, client, snk, maxThreads, logger)

	if promSnk, ok := snk.(*promsink.Sink); ok {
		promSnk.SetDumpHandler(orch.Dump)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch.Warmup(ctx)

	go func() {
		if err := snk.StartServing(ctx); err != nil {
			logger.Error("snmp_exporter: sink stopped serving", "error", err)
		}
	}()

	logger.Info("snmp_exporter: running", "listen", listenAddr, "path", path)
	orch.Run(ctx)
	orch.Stop()
	return 0
}

func buildLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warning", "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warning|error)", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func buildSink(cfg *config.LoadedConfig, listenAddr, path string, logger *slog.Logger) (sink.Sink, error) {
	if cfg.Driver == nil || cfg.Driver.Name == "prometheus" {
		return promsink.New(listenAddr, path, logger), nil
	}

	addr, _ := cfg.Driver.Config["addr"].(string)
	database, _ := cfg.Driver.Config["database"].(string)
	username, _ := cfg.Driver.Config["username"].(string)
	password, _ := cfg.Driver.Config["password"].(string)
	if addr == "" {
		return nil, fmt.Errorf("driver: influxdb requires config.addr")
	}
	return influxsink.New(influxsink.Config{
		Addr:     addr,
		Database: database,
		Username: username,
		Password: password,
	}, logger), nil
}
