//go:build cgo

package dispatch

// This file swaps the system BLAS (Accelerate on macOS, OpenBLAS on
// Linux) in under the reference provider when CGO is available. The
// provider closures read the active implementation at call time, so
// every Callable in the table routes through netlib after this runs.

import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas64"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/netlib/blas/netlib"
)

func init() {
	blas32.Use(netlib.Implementation{})
	blas64.Use(netlib.Implementation{})
	cblas64.Use(netlib.Implementation{})
	cblas128.Use(netlib.Implementation{})
	log.Debug().Msg("⚡ CGO/BLAS Acceleration Enabled (netlib)")
}
