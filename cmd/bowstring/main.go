package main

import (
	"context"
	"os"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/quiverlab/bowstring/internal/registry"
)

var (
	flagRegistry   string
	flagVerbose    bool
	flagOTel       bool
	flagCPUProfile string

	profileFile    *os.File
	tracerShutdown func(context.Context) error
)

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	root := &cobra.Command{
		Use:           "bowstring",
		Short:         "ABI bridging toolkit for BLAS/LAPACK back ends",
		Long:          "bowstring generates ABI-correct shim sources for a selected BLAS/LAPACK back end,\ndetects its calling convention, and plans dual-width (LP64/ILP64) linkage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}

			if flagOTel {
				shutdown, err := initTracer()
				if err != nil {
					return err
				}
				tracerShutdown = shutdown
			}

			if flagCPUProfile != "" {
				f, err := os.Create(flagCPUProfile)
				if err != nil {
					return err
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return err
				}
				profileFile = f
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if profileFile != nil {
				pprof.StopCPUProfile()
				profileFile.Close()
			}
			if tracerShutdown != nil {
				if err := tracerShutdown(context.Background()); err != nil {
					log.Warn().Err(err).Msg("Tracer shutdown failed")
				}
			}
		},
	}

	root.PersistentFlags().StringVar(&flagRegistry, "registry", "", "Path to a signature registry file (default: embedded registry)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&flagOTel, "otel", false, "Enable OpenTelemetry tracing (stdout)")
	root.PersistentFlags().StringVar(&flagCPUProfile, "cpuprofile", "", "Write cpu profile to file")

	root.AddCommand(newGenerateCmd(), newDetectCmd(), newSymbolsCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Build failed")
		os.Exit(1)
	}
}

func loadRegistry() (*registry.Registry, error) {
	if flagRegistry == "" {
		return registry.Default()
	}
	data, err := os.ReadFile(flagRegistry)
	if err != nil {
		return nil, err
	}
	return registry.Parse(data)
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("bowstring"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
