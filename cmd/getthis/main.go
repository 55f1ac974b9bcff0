package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/spf13/afero"

	"getthis/collect"
	"getthis/config"
	"getthis/limits"
	"getthis/logger"
	"getthis/sample"
	"getthis/scanner"
	"getthis/sink"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	global := cfg.GlobalLimits()
	specs, terms, err := cfg.BuildSpecs()
	if err != nil {
		logger.Fatalf("Invalid sample specs: %v", err)
	}

	scan, err := scanner.NewFSScanner(afero.NewOsFs(), terms, cfg.MaxIOPerSecond)
	if err != nil {
		logger.Fatalf("Failed to build scanner: %v", err)
	}
	scan.SetExcludes(cfg.ExcludeGlobs)

	snk, err := buildSink(cfg)
	if err != nil {
		logger.Fatalf("Failed to build output: %v", err)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Collecting samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetVisibility(isTerminal()),
	)

	collector := collect.New(&global, specs, scan, snk, collect.Options{
		HashAlgorithms:  cfg.HashAlgorithms,
		FuzzyAlgorithms: cfg.FuzzyAlgos,
		FuzzyMaxBytes:   cfg.FuzzyMaxSize,
		ReportAll:       cfg.ReportAll,
		ContentDefaults: sample.ContentSpec{MinChars: cfg.MinChars, MaxChars: cfg.MaxChars},
		ComputerName:    computerName(),
		Recurse:         cfg.Recurse,
		Progress: func(ref *sample.Ref) {
			_ = bar.Add(1)
		},
	})

	go handleSignals(collector)

	if err := collector.Run(cfg.Locations); err != nil {
		logger.Fatalf("Collection failed: %v", err)
	}
	_ = bar.Finish()

	reportLimits("global", &global)
	for _, spec := range specs {
		name := spec.Name
		if name == "" {
			name = "default"
		}
		reportLimits(name, &spec.PerSampleLimits)
	}
	logger.Infof("Collected %d unique samples into %s", collector.Registry().Len(), cfg.OutputPath)
}

func buildSink(cfg *config.Config) (sink.Sink, error) {
	if cfg.OutputType == "archive" {
		format, err := sink.ParseArchiveFormat(cfg.ArchiveFormat)
		if err != nil {
			return nil, err
		}
		return sink.NewArchiveSink(cfg.OutputPath, format, cfg.Compression, cfg.Password), nil
	}
	return sink.NewDirectorySink(afero.NewOsFs(), cfg.OutputPath), nil
}

func computerName() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "[unknown]"
}

func reportLimits(name string, l *limits.Limits) {
	if l.MaxSampleCountReached {
		logger.Warnf("%s: sample count ceiling (%d) was reached during the run", name, l.MaxSampleCount)
	}
	if l.MaxBytesPerSampleReached {
		logger.Warnf("%s: per-sample byte ceiling (%d) rejected at least one sample", name, l.MaxBytesPerSample)
	}
	if l.MaxBytesTotalReached {
		logger.Warnf("%s: total byte ceiling (%d) was reached during the run", name, l.MaxBytesTotal)
	}
}

func handleSignals(collector *collect.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Interrupt signal received. Finishing current sample and closing output...")
	collector.Stop()
}

func isTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
