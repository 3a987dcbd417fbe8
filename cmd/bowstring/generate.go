package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/quiverlab/bowstring/internal/abi"
	"github.com/quiverlab/bowstring/internal/gen"
	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

func parsePrecisionList(s string) ([]registry.Precision, error) {
	if s == "" {
		return nil, nil
	}
	var out []registry.Precision
	for _, part := range strings.Split(s, ",") {
		p, err := registry.ParsePrecision(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func detectProfile(backend, override string) (abi.Profile, error) {
	opts := abi.DetectOptions{Backend: backend}
	if override != "" {
		conv, err := abi.ParseConvention(override)
		if err != nil {
			return abi.Profile{}, err
		}
		opts.Override = conv
	}
	return abi.Detect(opts), nil
}

func newGenerateCmd() *cobra.Command {
	var (
		backend     string
		abiOverride string
		precisions  string
		outDir      string
		cacheDir    string
		manifestPkg string
		ilp64       bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate ABI shim sources for the selected back end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tracer := otel.Tracer("bowstring")
			ctx, span := tracer.Start(ctx, "generate")
			defer span.End()

			// The pipeline is strictly sequential:
			// parse -> detect -> generate -> link plan.
			var stage trace.Span

			_, stage = tracer.Start(ctx, "parse-registry")
			reg, err := loadRegistry()
			stage.End()
			if err != nil {
				return err
			}

			_, stage = tracer.Start(ctx, "detect-abi")
			profile, err := detectProfile(backend, abiOverride)
			stage.End()
			if err != nil {
				return err
			}
			log.Info().
				Str("vendor", profile.Vendor).
				Str("convention", string(profile.Convention)).
				Bool("cblas_bridge", profile.UsesCBLASBridge).
				Msg("ABI profile")

			plan, err := link.NewPlan(profile, link.Options{ILP64: ilp64})
			if err != nil {
				return err
			}

			precs, err := parsePrecisionList(precisions)
			if err != nil {
				return err
			}

			_, stage = tracer.Start(ctx, "emit-shims")
			res, err := gen.GenerateCached(gen.NewCache(cacheDir), gen.Params{
				Registry:        reg,
				Profile:         profile,
				Plan:            plan,
				Precisions:      precs,
				ManifestPackage: manifestPkg,
			})
			stage.End()
			if err != nil {
				return err
			}

			_, stage = tracer.Start(ctx, "write-artifacts")
			err = res.Write(outDir)
			stage.End()
			if err != nil {
				return err
			}

			for _, ns := range plan.Namespaces {
				log.Info().
					Str("width", ns.Width.String()).
					Str("archive", ns.ArchiveName).
					Int("index_bytes", ns.IndexByteSize).
					Msg("Linker namespace")
			}
			log.Info().
				Int("artifacts", len(res.Artifacts)).
				Str("dir", outDir).
				Str("cache_key", res.Key[:12]).
				Msg("Generation complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "netlib", "Back-end vendor/library selector")
	cmd.Flags().StringVar(&abiOverride, "abi-override", "", "Force a calling convention (g77, gfortran) instead of autodetection")
	cmd.Flags().StringVar(&precisions, "precisions", "", "Comma-separated precision prefixes to instantiate (default: s,d,c,z)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "build/shims", "Output directory for generated sources")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Build cache directory (empty disables the disk cache)")
	cmd.Flags().StringVar(&manifestPkg, "manifest-package", "shims", "Package name of the generated Go symbol index")
	cmd.Flags().BoolVar(&ilp64, "ilp64", false, "Additionally link the 64-bit-index back-end build")

	return cmd
}

func newDetectCmd() *cobra.Command {
	var (
		backend     string
		abiOverride string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the ABI profile computed for a back end",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := detectProfile(backend, abiOverride)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vendor:       %s\n", profile.Vendor)
			fmt.Fprintf(out, "class:        %s\n", abi.ClassifyBackend(profile.Vendor).Class)
			fmt.Fprintf(out, "convention:   %s\n", profile.Convention)
			fmt.Fprintf(out, "cblas_bridge: %v\n", profile.UsesCBLASBridge)
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "netlib", "Back-end vendor/library selector")
	cmd.Flags().StringVar(&abiOverride, "abi-override", "", "Force a calling convention (g77, gfortran) instead of autodetection")

	return cmd
}
