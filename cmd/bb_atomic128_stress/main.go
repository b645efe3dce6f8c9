package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/buildbarn/bb-atomic128/pkg/clock"
	"github.com/buildbarn/bb-atomic128/pkg/diagnostics"
	"github.com/buildbarn/bb-atomic128/pkg/program"
	"github.com/buildbarn/bb-atomic128/pkg/stress"
	"github.com/buildbarn/bb-atomic128/pkg/util"
	"github.com/google/uuid"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ApplicationConfiguration of bb_atomic128_stress.
type ApplicationConfiguration struct {
	// Paths of files to which log output is appended, in addition
	// to stderr.
	LogPaths []string `json:"logPaths"`

	// Optional web server exposing health checks, Prometheus
	// metrics and profiling endpoints for the duration of the test.
	DiagnosticsHTTPServer *diagnostics.Configuration `json:"diagnosticsHttpServer"`

	// Number of consecutive runs to perform. Defaults to one.
	Runs int `json:"runs"`

	Stress stress.Configuration `json:"stress"`
}

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		if len(os.Args) != 2 {
			return status.Error(codes.InvalidArgument, "Usage: bb_atomic128_stress bb_atomic128_stress.jsonnet")
		}
		var configuration ApplicationConfiguration
		if err := util.UnmarshalConfigurationFromFile(os.Args[1], &configuration); err != nil {
			return util.StatusWrapf(err, "Failed to read configuration from %s", os.Args[1])
		}

		// Logging.
		logWriters := append(make([]io.Writer, 0, len(configuration.LogPaths)+1), os.Stderr)
		for _, logPath := range configuration.LogPaths {
			w, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
			if err != nil {
				return util.StatusWrapf(err, "Failed to open log path %#v", logPath)
			}
			logWriters = append(logWriters, w)
		}
		log.SetOutput(io.MultiWriter(logWriters...))

		tester, err := stress.NewTesterFromConfiguration(&configuration.Stress, clock.SystemClock, uuid.NewRandom)
		if err != nil {
			return util.StatusWrap(err, "Invalid stress test configuration")
		}

		var diagnosticsServer *diagnostics.Server
		if configuration.DiagnosticsHTTPServer != nil {
			diagnosticsServer, err = diagnostics.NewServer(configuration.DiagnosticsHTTPServer)
			if err != nil {
				return util.StatusWrap(err, "Invalid diagnostics HTTP server configuration")
			}
			dependenciesGroup.Go(diagnosticsServer.Run)
		}

		runs := configuration.Runs
		if runs <= 0 {
			runs = 1
		}
		for i := 0; i < runs; i++ {
			report, err := tester.Run(ctx)
			if err != nil {
				return err
			}
			log.Printf(
				"Run %s completed: %d workers performed %d operations in %s (seed %d)",
				report.RunID,
				report.Workers,
				report.TotalOperations(),
				report.Duration,
				report.Seed)
			for _, operation := range stress.AllOperations {
				if counts, ok := report.Operations[operation]; ok {
					log.Printf("  %-20s %12d succeeded %12d failed", operation, counts.Succeeded, counts.Failed)
				}
			}
		}

		if diagnosticsServer != nil {
			diagnosticsServer.SetNotServing()
		}
		return nil
	})
}
