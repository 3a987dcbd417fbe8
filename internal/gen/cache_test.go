package gen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverlab/bowstring/internal/abi"
	"github.com/quiverlab/bowstring/internal/link"
)

func TestCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)

	reg := mustRegistry(t, axpyDotDoc)
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})
	plan, err := link.NewPlan(profile, link.Options{})
	require.NoError(t, err)
	params := Params{Registry: reg, Profile: profile, Plan: plan}

	first, err := GenerateCached(cache, params)
	require.NoError(t, err)

	// Second call from memory.
	second, err := GenerateCached(cache, params)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A cold cache instance must hit the disk mirror and reproduce the
	// artifacts byte for byte.
	cold := NewCache(dir)
	res, ok := cold.Get(first.Key)
	require.True(t, ok)
	require.Equal(t, len(first.Artifacts), len(res.Artifacts))
	for i := range first.Artifacts {
		assert.Equal(t, first.Artifacts[i].Source, res.Artifacts[i].Source)
	}
}

func TestCache_MissOnDifferentInputs(t *testing.T) {
	cache := NewCache(t.TempDir())

	reg := mustRegistry(t, axpyDotDoc)
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})
	plan, err := link.NewPlan(profile, link.Options{})
	require.NoError(t, err)

	_, err = GenerateCached(cache, Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)

	bridged := abi.Detect(abi.DetectOptions{Backend: "mkl"})
	bridgedPlan, err := link.NewPlan(bridged, link.Options{})
	require.NoError(t, err)

	_, ok := cache.Get(CacheKey(Params{Registry: reg, Profile: bridged, Plan: bridgedPlan}))
	assert.False(t, ok, "different profile must not reuse cached output")
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir)

	reg := mustRegistry(t, axpyDotDoc)
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})
	plan, err := link.NewPlan(profile, link.Options{})
	require.NoError(t, err)
	params := Params{Registry: reg, Profile: profile, Plan: plan}

	res, err := GenerateCached(cache, params)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, res.Key+".cbor"), []byte("not cbor"), 0o644))

	cold := NewCache(dir)
	_, ok := cold.Get(res.Key)
	assert.False(t, ok)

	// Regeneration overwrites the corrupt entry.
	again, err := GenerateCached(cold, params)
	require.NoError(t, err)
	assert.Equal(t, res.Key, again.Key)
}

func TestResult_Write(t *testing.T) {
	dir := t.TempDir()

	reg := mustRegistry(t, axpyDotDoc)
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})
	plan, err := link.NewPlan(profile, link.Options{})
	require.NoError(t, err)

	res, err := Generate(Params{Registry: reg, Profile: profile, Plan: plan})
	require.NoError(t, err)
	require.NoError(t, res.Write(dir))

	for _, name := range []string{"bowstring_abi.h", "axpy_d_lp64.c", "dot_d_lp64.c", "symbols.go"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "expected %s in output directory", name)
		assert.NotEmpty(t, data)
	}
}
