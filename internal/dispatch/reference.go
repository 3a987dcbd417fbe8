package dispatch

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/blas/cblas64"
	"gonum.org/v1/gonum/blas/cblas128"

	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

// The reference provider binds the dispatch table to the gonum BLAS
// implementations. With cgo enabled the netlib registration swaps the
// underlying implementation to the system BLAS; the closures below read
// the active implementation at call time, so they pick that up without
// rebuilding the table.
func init() {
	Register(referenceProvider[int32]{width: link.LP64})
	Register(referenceProvider[int64]{width: link.ILP64})
}

// indexType is the caller-visible integer width of a variant's bound
// signatures: int32 buffers for LP64, int64 for ILP64.
type indexType interface {
	~int32 | ~int64
}

type referenceProvider[I indexType] struct {
	width link.WidthVariant
}

func (p referenceProvider[I]) Name() string             { return "reference-" + p.width.String() }
func (p referenceProvider[I]) Width() link.WidthVariant { return p.width }

func transFromChar(c byte) blas.Transpose {
	switch c {
	case 'N', 'n':
		return blas.NoTrans
	case 'T', 't':
		return blas.Trans
	default:
		return blas.ConjTrans
	}
}

func (p referenceProvider[I]) Funcs() Funcs {
	return Funcs{
		// Level 1, real.
		{Name: "axpy", Precision: registry.Single}: func(n I, alpha float32, x []float32, incX I, y []float32, incY I) {
			blas32.Implementation().Saxpy(int(n), alpha, x, int(incX), y, int(incY))
		},
		{Name: "axpy", Precision: registry.Double}: func(n I, alpha float64, x []float64, incX I, y []float64, incY I) {
			blas64.Implementation().Daxpy(int(n), alpha, x, int(incX), y, int(incY))
		},
		{Name: "scal", Precision: registry.Single}: func(n I, alpha float32, x []float32, incX I) {
			blas32.Implementation().Sscal(int(n), alpha, x, int(incX))
		},
		{Name: "scal", Precision: registry.Double}: func(n I, alpha float64, x []float64, incX I) {
			blas64.Implementation().Dscal(int(n), alpha, x, int(incX))
		},
		{Name: "dot", Precision: registry.Single}: func(n I, x []float32, incX I, y []float32, incY I) float32 {
			return blas32.Implementation().Sdot(int(n), x, int(incX), y, int(incY))
		},
		{Name: "dot", Precision: registry.Double}: func(n I, x []float64, incX I, y []float64, incY I) float64 {
			return blas64.Implementation().Ddot(int(n), x, int(incX), y, int(incY))
		},
		{Name: "nrm2", Precision: registry.Single}: func(n I, x []float32, incX I) float32 {
			return blas32.Implementation().Snrm2(int(n), x, int(incX))
		},
		{Name: "nrm2", Precision: registry.Double}: func(n I, x []float64, incX I) float64 {
			return blas64.Implementation().Dnrm2(int(n), x, int(incX))
		},
		{Name: "asum", Precision: registry.Single}: func(n I, x []float32, incX I) float32 {
			return blas32.Implementation().Sasum(int(n), x, int(incX))
		},
		{Name: "asum", Precision: registry.Double}: func(n I, x []float64, incX I) float64 {
			return blas64.Implementation().Dasum(int(n), x, int(incX))
		},
		// gonum index results are zero-based; the bound symbols follow
		// the native one-based contract, so every backend under a given
		// symbol agrees.
		{Name: "iamax", Precision: registry.Single}: func(n I, x []float32, incX I) I {
			return I(blas32.Implementation().Isamax(int(n), x, int(incX))) + 1
		},
		{Name: "iamax", Precision: registry.Double}: func(n I, x []float64, incX I) I {
			return I(blas64.Implementation().Idamax(int(n), x, int(incX))) + 1
		},

		// Level 1, complex.
		{Name: "axpy", Precision: registry.Complex}: func(n I, alpha complex64, x []complex64, incX I, y []complex64, incY I) {
			cblas64.Implementation().Caxpy(int(n), alpha, x, int(incX), y, int(incY))
		},
		{Name: "axpy", Precision: registry.DoubleComplex}: func(n I, alpha complex128, x []complex128, incX I, y []complex128, incY I) {
			cblas128.Implementation().Zaxpy(int(n), alpha, x, int(incX), y, int(incY))
		},
		{Name: "dotu", Precision: registry.Complex}: func(n I, x []complex64, incX I, y []complex64, incY I) complex64 {
			return cblas64.Implementation().Cdotu(int(n), x, int(incX), y, int(incY))
		},
		{Name: "dotu", Precision: registry.DoubleComplex}: func(n I, x []complex128, incX I, y []complex128, incY I) complex128 {
			return cblas128.Implementation().Zdotu(int(n), x, int(incX), y, int(incY))
		},
		{Name: "dotc", Precision: registry.Complex}: func(n I, x []complex64, incX I, y []complex64, incY I) complex64 {
			return cblas64.Implementation().Cdotc(int(n), x, int(incX), y, int(incY))
		},
		{Name: "dotc", Precision: registry.DoubleComplex}: func(n I, x []complex128, incX I, y []complex128, incY I) complex128 {
			return cblas128.Implementation().Zdotc(int(n), x, int(incX), y, int(incY))
		},

		// Level 2/3, real.
		{Name: "gemv", Precision: registry.Double}: func(trans byte, m, n I, alpha float64, a []float64, lda I, x []float64, incX I, beta float64, y []float64, incY I) {
			blas64.Implementation().Dgemv(transFromChar(trans), int(m), int(n), alpha, a, int(lda), x, int(incX), beta, y, int(incY))
		},
		{Name: "gemm", Precision: registry.Single}: func(transA, transB byte, m, n, k I, alpha float32, a []float32, lda I, b []float32, ldb I, beta float32, c []float32, ldc I) {
			blas32.Implementation().Sgemm(transFromChar(transA), transFromChar(transB), int(m), int(n), int(k), alpha, a, int(lda), b, int(ldb), beta, c, int(ldc))
		},
		{Name: "gemm", Precision: registry.Double}: func(transA, transB byte, m, n, k I, alpha float64, a []float64, lda I, b []float64, ldb I, beta float64, c []float64, ldc I) {
			blas64.Implementation().Dgemm(transFromChar(transA), transFromChar(transB), int(m), int(n), int(k), alpha, a, int(lda), b, int(ldb), beta, c, int(ldc))
		},
	}
}
