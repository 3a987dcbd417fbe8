package gen

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverlab/bowstring/internal/abi"
	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

func mustRegistry(t *testing.T, doc string) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse([]byte(doc))
	require.NoError(t, err)
	return reg
}

func mustPlan(t *testing.T, backend string, ilp64 bool) (abi.Profile, link.Plan) {
	t.Helper()
	profile := abi.Detect(abi.DetectOptions{Backend: backend})
	plan, err := link.NewPlan(profile, link.Options{ILP64: ilp64})
	require.NoError(t, err)
	return profile, plan
}

func findArtifact(t *testing.T, res *Result, symbol string) Artifact {
	t.Helper()
	for _, a := range res.Artifacts {
		if a.Symbol == symbol {
			return a
		}
	}
	t.Fatalf("no artifact for symbol %q", symbol)
	return Artifact{}
}

const axpyDotDoc = `
routines:
  - name: axpy
    kind: blas
    precisions: [d]
    params:
      - {name: n, type: integer}
      - {name: alpha, type: scalar-real}
      - {name: x, type: array-real}
      - {name: incx, type: integer}
      - {name: y, type: array-real}
      - {name: incy, type: integer}
  - name: dot
    kind: blas
    precisions: [d]
    returns: scalar-real
    params:
      - {name: n, type: integer}
      - {name: x, type: array-real}
      - {name: incx, type: integer}
      - {name: y, type: array-real}
      - {name: incy, type: integer}
`

func TestGenerate_Deterministic(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "openblas", true)
	params := Params{Registry: reg, Profile: profile, Plan: plan}

	first, err := Generate(params)
	require.NoError(t, err)
	second, err := Generate(params)
	require.NoError(t, err)

	require.Equal(t, len(first.Artifacts), len(second.Artifacts))
	assert.Equal(t, first.Header.Source, second.Header.Source)
	assert.Equal(t, first.Manifest.Source, second.Manifest.Source)
	for i := range first.Artifacts {
		assert.Equal(t, first.Artifacts[i].Filename, second.Artifacts[i].Filename)
		assert.Equal(t, string(first.Artifacts[i].Source), string(second.Artifacts[i].Source),
			"artifact %s must be byte-identical across runs", first.Artifacts[i].Symbol)
	}
	assert.Equal(t, first.Key, second.Key)
}

func TestGenerate_PassthroughShim(t *testing.T) {
	reg := mustRegistry(t, axpyDotDoc)
	profile, plan := mustPlan(t, "openblas", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	axpy := findArtifact(t, res, "axpy_d_lp64")
	assert.False(t, axpy.Bridged)
	src := string(axpy.Source)
	assert.Contains(t, src, "void axpy_d_lp64(bowstring_int32 *n, double *alpha, double *x, bowstring_int32 *incx, double *y, bowstring_int32 *incy)")
	assert.Contains(t, src, "daxpy_(n, alpha, x, incx, y, incy);")
	assert.NotContains(t, src, "cblas_")

	dot := findArtifact(t, res, "dot_d_lp64")
	src = string(dot.Source)
	assert.Contains(t, src, "double *ret")
	assert.Contains(t, src, "*ret = ddot_(n, x, incx, y, incy);")
}

func TestGenerate_BridgedShim(t *testing.T) {
	reg := mustRegistry(t, axpyDotDoc)
	profile, plan := mustPlan(t, "accelerate", false)
	require.True(t, profile.UsesCBLASBridge)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	// A bridged profile never calls native entry points, even for
	// routines with no scalar result or character flags.
	axpy := findArtifact(t, res, "axpy_d_lp64")
	assert.True(t, axpy.Bridged)
	src := string(axpy.Source)
	assert.Contains(t, src, "cblas_daxpy(*n, *alpha, x, *incx, y, *incy);")
	assert.NotContains(t, src, "daxpy_(")

	// dot returns a scalar: result must come back through the
	// C-convention path, never native return-by-value.
	dot := findArtifact(t, res, "dot_d_lp64")
	assert.True(t, dot.Bridged)
	src = string(dot.Source)
	assert.Contains(t, src, "*ret = cblas_ddot(*n, x, *incx, y, *incy);")
	assert.NotContains(t, src, "ddot_(")
}

func TestGenerate_BridgedComplexReturnUsesSubForm(t *testing.T) {
	reg := mustRegistry(t, `
routines:
  - name: dotu
    kind: blas
    precisions: [z]
    returns: scalar-complex
    params:
      - {name: n, type: integer}
      - {name: x, type: array-complex}
      - {name: incx, type: integer}
      - {name: y, type: array-complex}
      - {name: incy, type: integer}
`)
	profile, plan := mustPlan(t, "mkl", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	dotu := findArtifact(t, res, "dotu_z_lp64")
	src := string(dotu.Source)
	assert.Contains(t, src, "cblas_zdotu_sub(*n, x, *incx, y, *incy, ret);")
	assert.Contains(t, src, "bowstring_complex_double *ret")
	assert.NotContains(t, src, "*ret =", "complex results never pass through return-by-value")
}

func TestGenerate_BridgedLevel3TranslatesFlags(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "mkl", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Double}})
	require.NoError(t, err)

	gemm := findArtifact(t, res, "gemm_d_lp64")
	src := string(gemm.Source)
	assert.Contains(t, src, "CblasColMajor")
	assert.Contains(t, src, "bowstring_cblas_trans(*transa)")
	assert.Contains(t, src, "bowstring_cblas_trans(*transb)")
	assert.NotContains(t, src, "transa_len", "bridged calls carry no hidden length arguments")
}

func TestGenerate_BridgedLAPACK(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "mkl", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Double}})
	require.NoError(t, err)

	potrf := findArtifact(t, res, "potrf_d_lp64")
	src := string(potrf.Source)
	assert.Contains(t, src, "*info = LAPACKE_dpotrf(LAPACK_COL_MAJOR, *uplo, *n, a, *lda);")

	// Workspace and its size arguments vanish from the bridged call;
	// the canonical surface keeps them so callers see one signature
	// regardless of back end.
	gesdd := findArtifact(t, res, "gesdd_d_lp64")
	src = string(gesdd.Source)
	assert.Contains(t, src, "*info = LAPACKE_dgesdd(LAPACK_COL_MAJOR, *jobz, *m, *n, a, *lda, s, u, *ldu, vt, *ldvt);")
	assert.Contains(t, src, "double *work")

	// Pivot vectors stay pointers in the LAPACKE call; scalar integers
	// go by value.
	getrf := findArtifact(t, res, "getrf_d_lp64")
	src = string(getrf.Source)
	assert.True(t, getrf.Bridged)
	assert.Contains(t, src, "*info = LAPACKE_dgetrf(LAPACK_COL_MAJOR, *m, *n, a, *lda, ipiv);")
	assert.Contains(t, src, "bowstring_int32 *ipiv")

	getrs := findArtifact(t, res, "getrs_d_lp64")
	src = string(getrs.Source)
	assert.Contains(t, src, "*info = LAPACKE_dgetrs(LAPACK_COL_MAJOR, *trans, *n, *nrhs, a, *lda, ipiv, b, *ldb);")
	assert.Contains(t, src, "bowstring_int32 *ipiv")
}

func TestGenerate_BridgedIndexResultOneBased(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "mkl", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Single}})
	require.NoError(t, err)

	// CBLAS index results are zero-based; the exported symbol keeps the
	// native one-based contract.
	iamax := findArtifact(t, res, "iamax_s_lp64")
	src := string(iamax.Source)
	assert.Contains(t, src, "extern size_t cblas_isamax(")
	assert.Contains(t, src, "*ret = (bowstring_int32)(cblas_isamax(*n, x, *incx) + 1);")
}

func TestGenerate_BridgedLevel2TakesLayoutWithoutFlags(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "mkl", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Double}})
	require.NoError(t, err)

	// ger carries no character flags, but its CBLAS entry still takes
	// the storage-order argument like every matrix routine.
	ger := findArtifact(t, res, "ger_d_lp64")
	assert.Contains(t, string(ger.Source), "cblas_dger(CblasColMajor, *m, *n, *alpha, x, *incx, y, *incy, a, *lda);")

	// Vector routines do not.
	axpy := findArtifact(t, res, "axpy_d_lp64")
	assert.NotContains(t, string(axpy.Source), "CblasColMajor")
}

func TestGenerate_IntegerArrayAndWorkspaceTypes(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "openblas", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Double}})
	require.NoError(t, err)

	getrf := findArtifact(t, res, "getrf_d_lp64")
	src := string(getrf.Source)
	assert.Contains(t, src, "bowstring_int32 *ipiv")
	assert.Contains(t, src, "dgetrf_(m, n, a, lda, ipiv, info);")

	// Integer workspace renders at the integer type, not the routine's
	// element type.
	gesdd := findArtifact(t, res, "gesdd_d_lp64")
	src = string(gesdd.Source)
	assert.Contains(t, src, "bowstring_int32 *iwork")
	assert.Contains(t, src, "double *work")
}

func TestGenerate_PassthroughCharLengths(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "openblas", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan, Precisions: []registry.Precision{registry.Double}})
	require.NoError(t, err)

	potrf := findArtifact(t, res, "potrf_d_lp64")
	src := string(potrf.Source)
	assert.Contains(t, src, "bowstring_charlen_t uplo_len")
	assert.Contains(t, src, "dpotrf_(uplo, n, a, lda, info, (bowstring_charlen_t)1);")
}

func TestGenerate_DualWidthSymbols(t *testing.T) {
	reg := mustRegistry(t, axpyDotDoc)
	profile, plan := mustPlan(t, "openblas", true)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	lp := findArtifact(t, res, "axpy_d_lp64")
	ilp := findArtifact(t, res, "axpy_d_ilp64")
	assert.NotEqual(t, lp.Symbol, ilp.Symbol, "width variants must not collide")

	src := string(ilp.Source)
	assert.Contains(t, src, "bowstring_int64 *n")
	assert.Contains(t, src, "daxpy_64_(", "ILP64 entry points carry the 64_ suffix")

	src = string(lp.Source)
	assert.Contains(t, src, "bowstring_int32 *n")
}

func TestGenerate_IrregularNames(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	profile, plan := mustPlan(t, "openblas", false)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	iamax := findArtifact(t, res, "iamax_s_lp64")
	assert.Contains(t, string(iamax.Source), "isamax_(")

	nrm2c := findArtifact(t, res, "nrm2_c_lp64")
	assert.Contains(t, string(nrm2c.Source), "scnrm2_(")

	nrm2z := findArtifact(t, res, "nrm2_z_lp64")
	assert.Contains(t, string(nrm2z.Source), "dznrm2_(")
}

func TestGenerate_UnsupportedSignatures(t *testing.T) {
	profile, plan := mustPlan(t, "mkl", false)

	cases := []struct {
		name string
		doc  string
	}{
		{"array return", `
routines:
  - name: bogus
    kind: blas
    precisions: [d]
    returns: array-real
    params: [{name: n, type: integer}]
`},
		{"untranslatable flag", `
routines:
  - name: bogus
    kind: blas
    precisions: [d]
    params:
      - {name: mode, type: character}
      - {name: n, type: integer}
`},
		{"lapack without info", `
routines:
  - name: bogus
    kind: lapack
    precisions: [d]
    params:
      - {name: uplo, type: character}
      - {name: n, type: integer}
`},
		{"bridged workspace in blas", `
routines:
  - name: bogus
    kind: blas
    precisions: [d]
    returns: scalar-real
    params:
      - {name: n, type: integer}
      - {name: work, type: workspace}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := mustRegistry(t, tc.doc)
			_, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
			require.Error(t, err)
			var use *UnsupportedSignatureError
			assert.True(t, errors.As(err, &use), "expected UnsupportedSignatureError, got %T: %v", err, err)
		})
	}
}

func TestGenerate_Manifest(t *testing.T) {
	reg := mustRegistry(t, axpyDotDoc)
	profile, plan := mustPlan(t, "openblas", true)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	src := string(res.Manifest.Source)
	assert.Contains(t, src, "package shims")
	assert.Contains(t, src, "SymbolAxpyDLp64")
	assert.Contains(t, src, `"axpy_d_lp64"`)
	assert.Contains(t, src, "SymbolAxpyDIlp64")
	assert.Contains(t, src, `"axpy_d_ilp64"`)
	assert.True(t, strings.Contains(src, "var Symbols = []string{"))
}

func TestCacheKey_SensitiveToInputs(t *testing.T) {
	reg := mustRegistry(t, axpyDotDoc)
	profileNative, planNative := mustPlan(t, "openblas", false)
	profileBridged, planBridged := mustPlan(t, "mkl", false)
	_, planWide := mustPlan(t, "openblas", true)

	base := CacheKey(Params{Registry: reg, Profile: profileNative, Plan: planNative})
	assert.Equal(t, base, CacheKey(Params{Registry: reg, Profile: profileNative, Plan: planNative}))
	assert.NotEqual(t, base, CacheKey(Params{Registry: reg, Profile: profileBridged, Plan: planBridged}))
	assert.NotEqual(t, base, CacheKey(Params{Registry: reg, Profile: profileNative, Plan: planWide}))
	assert.NotEqual(t, base, CacheKey(Params{Registry: reg, Profile: profileNative, Plan: planNative, Precisions: []registry.Precision{registry.Double}}))
}
