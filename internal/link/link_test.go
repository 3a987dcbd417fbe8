package link

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiverlab/bowstring/internal/abi"
)

func TestNewPlan_LP64Always(t *testing.T) {
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})

	plan, err := NewPlan(profile, Options{})
	require.NoError(t, err)
	require.Len(t, plan.Namespaces, 1)
	assert.True(t, plan.Has(LP64))
	assert.False(t, plan.Has(ILP64))

	ns, ok := plan.Namespace(LP64)
	require.True(t, ok)
	assert.Equal(t, "lp64", ns.SymbolSuffix)
	assert.Equal(t, 4, ns.IndexByteSize)
	assert.Empty(t, ns.EntrySuffix)
}

func TestNewPlan_ILP64Additive(t *testing.T) {
	profile := abi.Detect(abi.DetectOptions{Backend: "openblas"})

	plan, err := NewPlan(profile, Options{ILP64: true})
	require.NoError(t, err)
	require.Len(t, plan.Namespaces, 2)
	assert.Equal(t, LP64, plan.Namespaces[0].Width, "LP64 namespace first")

	ns, ok := plan.Namespace(ILP64)
	require.True(t, ok)
	assert.Equal(t, "ilp64", ns.SymbolSuffix)
	assert.Equal(t, 8, ns.IndexByteSize)
	assert.Equal(t, "64_", ns.EntrySuffix)
	assert.NotEqual(t, plan.Namespaces[0].ArchiveName, ns.ArchiveName,
		"widths must link from isolated archives")
}

func TestNewPlan_WidthUnavailable(t *testing.T) {
	profile := abi.Detect(abi.DetectOptions{Backend: "accelerate"})

	_, err := NewPlan(profile, Options{ILP64: true})
	require.Error(t, err)
	var wu *WidthUnavailableError
	require.True(t, errors.As(err, &wu))
	assert.Equal(t, "accelerate", wu.Vendor)
	assert.Equal(t, ILP64, wu.Width)
}

func TestNewPlan_CapabilityOverride(t *testing.T) {
	profile := abi.Detect(abi.DetectOptions{Backend: "accelerate"})

	plan, err := NewPlan(profile, Options{ILP64: true, Capabilities: &Capabilities{HasILP64: true}})
	require.NoError(t, err)
	assert.True(t, plan.Has(ILP64))
}

func TestParseWidth(t *testing.T) {
	w, err := ParseWidth("")
	require.NoError(t, err)
	assert.Equal(t, LP64, w, "unspecified width defaults to LP64")

	w, err = ParseWidth("ilp64")
	require.NoError(t, err)
	assert.Equal(t, ILP64, w)

	_, err = ParseWidth("lp32")
	assert.Error(t, err)
}
