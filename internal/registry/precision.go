package registry

import "fmt"

// Precision is the floating-point precision prefix of a routine
// instantiation, following the standard BLAS/LAPACK single-letter
// convention.
type Precision byte

const (
	Single        Precision = 's' // real, 32-bit
	Double        Precision = 'd' // real, 64-bit
	Complex       Precision = 'c' // complex, 2x32-bit
	DoubleComplex Precision = 'z' // complex, 2x64-bit
)

// AllPrecisions is the fixed expansion order used by the generator.
// The order is part of the reproducibility contract and must not change.
var AllPrecisions = []Precision{Single, Double, Complex, DoubleComplex}

// ParsePrecision accepts the single-letter prefix or the spelled-out
// names used on the command line and in lookup calls.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "s", "single", "float":
		return Single, nil
	case "d", "double":
		return Double, nil
	case "c", "complex":
		return Complex, nil
	case "z", "double-complex", "zcomplex":
		return DoubleComplex, nil
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

func (p Precision) String() string { return string(p) }

// IsComplex reports whether the precision carries complex values.
func (p Precision) IsComplex() bool {
	return p == Complex || p == DoubleComplex
}

// Base returns the real precision underlying a complex one: scalar-real
// parameters of a complex routine (increments aside) use the base type.
func (p Precision) Base() Precision {
	switch p {
	case Complex:
		return Single
	case DoubleComplex:
		return Double
	}
	return p
}
