package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"scorecard/internal/config"
	"scorecard/internal/faillog"
	"scorecard/internal/metrics"
	"scorecard/internal/metrics/datadog"
	"scorecard/internal/metrics/prompush"
	"scorecard/internal/pipeline"
	"scorecard/internal/snapshots"
	"scorecard/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "scorecard/internal/storage/all"
)

// main is the entry point for the loader binary. It loads the run config,
// optionally initializes a metrics backend, and executes one snapshot load.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		statsdAddrFlg     string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "loader config JSON path (defaults apply when empty)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; falls back to env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&statsdAddrFlg, "datadog-addr", "", "DogStatsD agent address (overrides env DOGSTATSD_ADDR)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Usage = usage
	flag.Parse()

	if !validate && flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// A directory argument loads every snapshot in it, directory files
	// first, then metrics files by ascending year.
	paths := []string{flag.Arg(0)}
	if fi, err := os.Stat(flag.Arg(0)); err == nil && fi.IsDir() {
		paths, err = snapshots.Discover(flag.Arg(0))
		if err != nil {
			fatalf("%v", err)
		}
		if len(paths) == 0 {
			fatalf("no snapshots in %s", flag.Arg(0))
		}
	}

	initMetrics(cfg, metricsBackendFlg, pushGatewayURLFlg, statsdAddrFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer repo.Close()

	flog, err := faillog.Open(cfg.FailLog)
	if err != nil {
		fatalf("open failure log: %v", err)
	}
	defer flog.Close()

	p := pipeline.New(cfg, repo, flog)
	for _, snapshot := range paths {
		if *verbose {
			log.Printf("run: snapshot=%s storage=%s batch_size=%d", snapshot, cfg.Storage.Kind, cfg.BatchSize)
		}
		sums, err := p.Run(ctx, snapshot)
		for _, s := range sums {
			fmt.Println(s)
		}
		if err != nil {
			if n := flog.Count(); n > 0 {
				fmt.Printf("failed rows logged to %s: %d\n", cfg.FailLog, n)
			}
			log.Fatalf("%v", err)
		}
	}
	if n := flog.Count(); n > 0 {
		fmt.Printf("failed rows logged to %s: %d\n", cfg.FailLog, n)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// resolveBackend applies the flag → env fallback for the metrics
// backend name. Empty after both means disabled.
func resolveBackend(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("METRICS_BACKEND")
}

// initMetrics wires the selected metrics backend: flag → env → nop.
func initMetrics(cfg config.Config, backendName, gwFlag, statsdFlag string, verbose bool) {
	backendName = resolveBackend(backendName)
	switch backendName {
	case "pushgateway":
		gwURL := gwFlag
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, cfg.Job)
		metrics.SetBackend(b)

	case "datadog":
		addr := statsdFlag
		if addr == "" {
			addr = os.Getenv("DOGSTATSD_ADDR")
		}
		if addr == "" {
			addr = "127.0.0.1:8125"
		}

		b, err := datadog.NewBackend(datadog.Config{
			Addr:      addr,
			Namespace: "scorecard.",
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", addr, backendName, cfg.Job)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] <snapshot.csv | snapshot-dir>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "loads directory and metrics snapshots into the store")
	flag.PrintDefaults()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
