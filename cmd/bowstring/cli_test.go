package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCommand(t *testing.T) {
	cmd := newDetectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--backend", "mkl"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cblas_bridge: true")
	assert.Contains(t, out.String(), "convention:   g77")
}

func TestDetectCommand_Override(t *testing.T) {
	cmd := newDetectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--backend", "netlib", "--abi-override", "g77"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cblas_bridge: true")
}

func TestSymbolsCommand(t *testing.T) {
	cmd := newSymbolsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--backend", "openblas", "--precisions", "d", "--ilp64"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "axpy_d_lp64")
	assert.Contains(t, out.String(), "axpy_d_ilp64")
	assert.Contains(t, out.String(), "native")
}

func TestGenerateCommand_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()

	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"--backend", "mkl", "--precisions", "d", "-o", dir})
	require.NoError(t, cmd.Execute())

	for _, name := range []string{"bowstring_abi.h", "dot_d_lp64.c", "symbols.go"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "expected %s", name)
	}
}

func TestGenerateCommand_WidthUnavailable(t *testing.T) {
	cmd := newGenerateCmd()
	cmd.SetArgs([]string{"--backend", "accelerate", "--ilp64", "-o", t.TempDir()})
	assert.Error(t, cmd.Execute(), "ILP64 against a back end without it must fail the build")
}

func TestLoadRegistry_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routines:
  - name: axpy
    kind: blas
    precisions: [d]
    params: [{name: n, type: integer}]
`), 0o644))

	orig := flagRegistry
	flagRegistry = path
	defer func() { flagRegistry = orig }()

	reg, err := loadRegistry()
	require.NoError(t, err)
	assert.Len(t, reg.Routines, 1)
}
