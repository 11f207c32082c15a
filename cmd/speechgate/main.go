// Command speechgate enhances a batch of recordings and, when configured,
// transcribes them and scores how often the expected keyword is recognized.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/speechgate/internal/batch"
	"github.com/MrWong99/speechgate/internal/config"
	"github.com/MrWong99/speechgate/internal/health"
	"github.com/MrWong99/speechgate/internal/keyword"
	"github.com/MrWong99/speechgate/internal/observe"
	"github.com/MrWong99/speechgate/pkg/enhance"
)

// version is overridden at link time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (built-in defaults when empty)")
	input := flag.String("input", "", "WAV file or directory of recordings")
	outputDir := flag.String("output", "", "directory for enhanced recordings, overrides batch.output_dir")
	reportPath := flag.String("report", "", "CSV report path, overrides batch.report_path")
	workers := flag.Int("workers", 0, "recordings processed concurrently, overrides batch.workers")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics, /healthz and /readyz on this address, overrides metrics.listen_addr")
	flag.Parse()

	if *input == "" && flag.NArg() > 0 {
		*input = flag.Arg(0)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "speechgate: no input given, pass -input <file or directory>")
		flag.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speechgate: config file %q not found, run without -config to use the defaults\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speechgate: %v\n", err)
		}
		return 1
	}
	applyOverrides(cfg, *outputDir, *reportPath, *workers, *metricsAddr)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "speechgate: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("speechgate starting",
		"version", version,
		"config", *configPath,
		"input", *input,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer providers.Close()

	enh, err := enhance.New(cfg.Enhance, providers.EnhanceOptions...)
	if err != nil {
		slog.Error("failed to create enhancer", "err", err)
		return 1
	}

	// ── Inputs and evaluation ─────────────────────────────────────────────────
	inputs, err := batch.ListInputs(*input)
	if err != nil {
		slog.Error("failed to list inputs", "err", err)
		return 1
	}
	if len(inputs) == 0 {
		slog.Error("no WAV recordings found", "input", *input)
		return 1
	}

	runOpts := []batch.Option{batch.WithMetrics(metrics)}
	if providers.Transcriber != nil {
		runOpts = append(runOpts, batch.WithTranscriber(providers.Transcriber))
	}
	if cfg.Evaluation.GroundTruthCSV != "" {
		if providers.Transcriber == nil {
			slog.Warn("ground truth configured without transcribers, skipping evaluation")
		} else {
			truth, err := keyword.LoadGroundTruthFile(cfg.Evaluation.GroundTruthCSV, keyword.GroundTruthOptions{
				FileColumn:    cfg.Evaluation.FileColumn,
				KeywordColumn: cfg.Evaluation.KeywordColumn,
				Files:         inputs,
			})
			if err != nil {
				slog.Error("failed to load ground truth", "err", err)
				return 1
			}
			slog.Info("ground truth loaded", "path", cfg.Evaluation.GroundTruthCSV, "recordings", len(truth))
			runOpts = append(runOpts, batch.WithEvaluation(newMatcher(cfg.Evaluation), truth))
		}
	}

	// ── Operational endpoints (optional) ──────────────────────────────────────
	if cfg.Metrics.ListenAddr != "" {
		checks := []health.Checker{health.BreakerCheck("transcribers", providers.TranscriberStates)}
		if cfg.Batch.WriteAudio {
			checks = append(checks, health.DirCheck("output_dir", cfg.Batch.OutputDir))
		}
		srv, err := startOpsServer(ctx, cfg.Metrics.ListenAddr, metrics, checks)
		if err != nil {
			slog.Error("failed to start metrics server", "addr", cfg.Metrics.ListenAddr, "err", err)
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				slog.Warn("metrics server shutdown error", "err", err)
			}
		}()
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, len(inputs), providers)

	// ── Run ───────────────────────────────────────────────────────────────────
	runner := batch.New(enh, batch.Options{
		Workers:            cfg.Batch.Workers,
		OutputDir:          cfg.Batch.OutputDir,
		WriteAudio:         cfg.Batch.WriteAudio,
		TranscribeOriginal: cfg.Batch.TranscribeOriginal,
	}, runOpts...)

	results, err := runner.Run(ctx, inputs)
	interrupted := errors.Is(err, context.Canceled)
	switch {
	case interrupted:
		slog.Warn("interrupted, writing partial results")
	case err != nil:
		slog.Error("batch failed", "err", err)
		return 1
	}

	if cfg.Batch.ReportPath != "" {
		if err := batch.WriteReportFile(cfg.Batch.ReportPath, results); err != nil {
			slog.Error("failed to write report", "err", err)
			return 1
		}
		slog.Info("report written", "path", cfg.Batch.ReportPath)
	}

	printRunSummary(batch.Summarize(results))
	if interrupted {
		return 130
	}
	return 0
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

func applyOverrides(cfg *config.Config, outputDir, reportPath string, workers int, metricsAddr string) {
	if outputDir != "" {
		cfg.Batch.OutputDir = outputDir
	}
	if reportPath != "" {
		cfg.Batch.ReportPath = reportPath
	}
	if workers > 0 {
		cfg.Batch.Workers = workers
	}
	if metricsAddr != "" {
		cfg.Metrics.ListenAddr = metricsAddr
	}
}

func newMatcher(ev config.EvaluationConfig) *keyword.Matcher {
	opts := []keyword.Option{
		keyword.WithFuzzyThreshold(ev.FuzzyThreshold),
		keyword.WithPhoneticThreshold(ev.PhoneticThreshold),
		keyword.WithMinRecall(ev.MinTokenRecall),
		keyword.WithTrigramThreshold(ev.TrigramThreshold),
	}
	if len(ev.Aliases) > 0 {
		opts = append(opts, keyword.WithAliases(ev.Aliases))
	}
	return keyword.New(opts...)
}

// startOpsServer serves Prometheus metrics and health probes until ctx ends
// or the returned server is shut down.
func startOpsServer(ctx context.Context, addr string, m *observe.Metrics, checks []health.Checker) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checks...).Register(mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics server listening", "addr", ln.Addr().String())
	return srv, nil
}

// ── Summaries ─────────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, inputs int, p *Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       speechgate — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Recordings", fmt.Sprint(inputs))
	printRow("Workers", fmt.Sprint(cfg.Batch.Workers))
	vadName := string(cfg.Enhance.VADVariant)
	if cfg.Enhance.VADVariant == enhance.VADModel && cfg.VAD.Name != "" {
		vadName += " / " + cfg.VAD.Name
	}
	printRow("VAD", vadName)
	printRow("Strategies", fmt.Sprint(len(p.Strategies)))
	if len(p.TranscriberNames) == 0 {
		printRow("STT", "(not configured)")
	}
	for _, name := range p.TranscriberNames {
		printRow("STT", name)
	}
	if cfg.Batch.WriteAudio {
		printRow("Output dir", cfg.Batch.OutputDir)
	} else {
		printRow("Output dir", "(disabled)")
	}
	if cfg.Batch.ReportPath != "" {
		printRow("Report", cfg.Batch.ReportPath)
	}
	if cfg.Evaluation.GroundTruthCSV != "" {
		printRow("Ground truth", cfg.Evaluation.GroundTruthCSV)
	}
	if cfg.Metrics.ListenAddr != "" {
		printRow("Metrics addr", cfg.Metrics.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRunSummary(s batch.Summary) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         speechgate — run summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Recordings", fmt.Sprint(s.Files))
	printRow("Enhanced", fmt.Sprint(s.Enhanced))
	printRow("Bypassed", fmt.Sprint(s.Bypassed))
	printRow("Fallback", fmt.Sprint(s.Fallback))
	printRow("Empty", fmt.Sprint(s.Empty))
	printRow("Failed", fmt.Sprint(s.Failed))
	if s.Skipped > 0 {
		printRow("Skipped", fmt.Sprint(s.Skipped))
	}
	printRow("Audio", s.Audio.Round(time.Second).String())
	if s.Evaluated > 0 {
		if s.Original > 0 {
			printRow("A orig/base", fmt.Sprintf("%.1f%%", s.AccuracyA))
			printRow("B orig/token", fmt.Sprintf("%.1f%%", s.AccuracyB))
		}
		printRow("C enh/base", fmt.Sprintf("%.1f%%", s.AccuracyC))
		printRow("D union/token", fmt.Sprintf("%.1f%%", s.AccuracyD))
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
