package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiverlab/bowstring/internal/gen"
	"github.com/quiverlab/bowstring/internal/link"
)

func newSymbolsCmd() *cobra.Command {
	var (
		backend     string
		abiOverride string
		precisions  string
		ilp64       bool
	)

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List the exported shim symbols a generation run would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			profile, err := detectProfile(backend, abiOverride)
			if err != nil {
				return err
			}
			plan, err := link.NewPlan(profile, link.Options{ILP64: ilp64})
			if err != nil {
				return err
			}
			precs, err := parsePrecisionList(precisions)
			if err != nil {
				return err
			}

			res, err := gen.Generate(gen.Params{
				Registry:   reg,
				Profile:    profile,
				Plan:       plan,
				Precisions: precs,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, a := range res.Artifacts {
				bridge := "native"
				if a.Bridged {
					bridge = "cblas-bridge"
				}
				fmt.Fprintf(out, "%-24s %-7s %s\n", a.Symbol, a.Kind, bridge)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "netlib", "Back-end vendor/library selector")
	cmd.Flags().StringVar(&abiOverride, "abi-override", "", "Force a calling convention (g77, gfortran) instead of autodetection")
	cmd.Flags().StringVar(&precisions, "precisions", "", "Comma-separated precision prefixes to instantiate (default: s,d,c,z)")
	cmd.Flags().BoolVar(&ilp64, "ilp64", false, "Include the 64-bit-index namespace")

	return cmd
}
