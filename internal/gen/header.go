package gen

// The shared header carries the width-specific integer typedefs, the
// complex value layout, the hidden-length type, and the CBLAS flag
// constants with the character translation helpers bridged shims use.
// It is emitted once per generation, byte for byte.
const abiHeader = `/* Code generated by bowstring. DO NOT EDIT. */

#ifndef BOWSTRING_ABI_H
#define BOWSTRING_ABI_H

#include <stdint.h>
#include <stddef.h>

typedef int32_t bowstring_int32;
typedef int64_t bowstring_int64;
typedef size_t bowstring_charlen_t;

typedef struct { float re, im; } bowstring_complex_float;
typedef struct { double re, im; } bowstring_complex_double;

enum {
	CblasColMajor  = 102,
	CblasNoTrans   = 111,
	CblasTrans     = 112,
	CblasConjTrans = 113,
	CblasUpper     = 121,
	CblasLower     = 122,
	CblasNonUnit   = 131,
	CblasUnit      = 132,
	CblasLeft      = 141,
	CblasRight     = 142
};

#define LAPACK_COL_MAJOR 102

static inline int bowstring_cblas_uplo(char c)
{
	return (c == 'U' || c == 'u') ? CblasUpper : CblasLower;
}

static inline int bowstring_cblas_trans(char c)
{
	if (c == 'N' || c == 'n')
		return CblasNoTrans;
	if (c == 'T' || c == 't')
		return CblasTrans;
	return CblasConjTrans;
}

static inline int bowstring_cblas_side(char c)
{
	return (c == 'L' || c == 'l') ? CblasLeft : CblasRight;
}

static inline int bowstring_cblas_diag(char c)
{
	return (c == 'U' || c == 'u') ? CblasUnit : CblasNonUnit;
}

#endif /* BOWSTRING_ABI_H */
`

func headerArtifact() Artifact {
	return Artifact{
		Filename: "bowstring_abi.h",
		Source:   []byte(abiHeader),
	}
}
