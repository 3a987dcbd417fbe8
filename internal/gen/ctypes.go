package gen

import (
	"fmt"

	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

// cType maps a semantic parameter type at a precision and width to the
// concrete C type used in shim signatures. Everything crosses the shim
// boundary by reference, Fortran-style; pointer-ness is added at the
// rendering site.
func cType(t registry.ParamType, p registry.Precision, ns link.Namespace) (string, error) {
	switch t {
	case registry.Integer, registry.ArrayInteger:
		if ns.Width == link.ILP64 {
			return "bowstring_int64", nil
		}
		return "bowstring_int32", nil
	case registry.Character:
		return "char", nil
	case registry.ScalarReal:
		return realCType(p.Base()), nil
	case registry.ScalarComplex:
		return complexCType(p)
	case registry.ArrayReal:
		return realCType(p.Base()), nil
	case registry.ArrayComplex:
		return complexCType(p)
	case registry.Workspace:
		if p.IsComplex() {
			return complexCType(p)
		}
		return realCType(p), nil
	}
	return "", fmt.Errorf("no C mapping for parameter type %q", t)
}

// paramCType resolves a parameter's concrete C type. Workspace arrays
// follow the LAPACK naming convention for their element kind: iwork is
// integer, rwork is real at the base precision, work matches the
// routine's element type.
func paramCType(prm registry.Param, p registry.Precision, ns link.Namespace) (string, error) {
	if prm.Type == registry.Workspace {
		switch prm.Name {
		case "iwork":
			return cType(registry.Integer, p, ns)
		case "rwork":
			return realCType(p.Base()), nil
		}
	}
	return cType(prm.Type, p, ns)
}

func realCType(p registry.Precision) string {
	if p == registry.Double {
		return "double"
	}
	return "float"
}

func complexCType(p registry.Precision) (string, error) {
	switch p {
	case registry.Complex:
		return "bowstring_complex_float", nil
	case registry.DoubleComplex:
		return "bowstring_complex_double", nil
	}
	return "", fmt.Errorf("complex type requested at real precision %q", p)
}

// irregularNames covers routines whose precision prefix does not simply
// prepend to the stem. The %s is replaced by the precision letter.
var irregularNames = map[string]string{
	"iamax": "i%samax",
}

// fortranStem builds the conventional Fortran routine name for a
// signature at a precision: daxpy, isamax, scnrm2 and friends.
func fortranStem(sig registry.RoutineSignature, p registry.Precision) string {
	if pattern, ok := irregularNames[sig.Name]; ok {
		return fmt.Sprintf(pattern, p)
	}
	// Real-valued reductions over complex vectors take the sc/dz
	// double-letter prefix (scnrm2, dzasum).
	if p.IsComplex() && sig.Returns == registry.ScalarReal {
		if p == registry.Complex {
			return "sc" + sig.Name
		}
		return "dz" + sig.Name
	}
	return string(p) + sig.Name
}

// fortranEntry is the native Fortran-convention entry point symbol,
// including the trailing underscore and any ILP64 suffix.
func fortranEntry(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) string {
	return fortranStem(sig, p) + "_" + ns.EntrySuffix
}

// lapackeEntry is the C-convention entry point for a LAPACK routine.
func lapackeEntry(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) string {
	return "LAPACKE_" + fortranStem(sig, p) + ns.EntrySuffix
}

// cblasCharHelpers maps character parameter names to the helper that
// translates the Fortran character flag into the matching CBLAS enum.
// A character parameter outside this table has no known C-convention
// translation and fails generation.
var cblasCharHelpers = map[string]string{
	"uplo":   "bowstring_cblas_uplo",
	"trans":  "bowstring_cblas_trans",
	"transa": "bowstring_cblas_trans",
	"transb": "bowstring_cblas_trans",
	"side":   "bowstring_cblas_side",
	"diag":   "bowstring_cblas_diag",
}

// cblasZeroBasedIndex marks routines whose CBLAS entry point returns a
// zero-based index where the native routine returns a one-based one.
// The exported surface keeps the one-based contract on both paths.
var cblasZeroBasedIndex = map[string]bool{
	"iamax": true,
}

// ExportedSymbol is the stable exported name of a shim:
// {routine}_{precision}_{width}.
func ExportedSymbol(name string, p registry.Precision, w link.WidthVariant) string {
	return fmt.Sprintf("%s_%s_%s", name, p, w)
}
