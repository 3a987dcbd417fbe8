// Package link plans how LP64 and ILP64 builds of the same back end
// coexist in one artifact. Each width variant owns an isolated symbol
// namespace (a mangling suffix plus its own archive), so identically
// named routines never collide at link time.
package link

import (
	"fmt"

	"github.com/quiverlab/bowstring/internal/abi"
)

// WidthVariant selects the integer index width of a back-end build.
type WidthVariant int

const (
	// LP64 is the 32-bit-index build. Always present; callers that do
	// not opt in to ILP64 get LP64.
	LP64 WidthVariant = iota
	// ILP64 is the optional 64-bit-index build. Strictly additive.
	ILP64
)

// AllWidths is the fixed planning/generation order for width variants.
var AllWidths = []WidthVariant{LP64, ILP64}

func (w WidthVariant) String() string {
	if w == ILP64 {
		return "ilp64"
	}
	return "lp64"
}

// IndexBytes returns the byte width of one array index under the
// variant: the value callers use to pick compatible buffer types.
func (w WidthVariant) IndexBytes() int {
	if w == ILP64 {
		return 8
	}
	return 4
}

// SymbolSuffix is the mangling suffix appended to every exported shim
// symbol of the variant.
func (w WidthVariant) SymbolSuffix() string { return w.String() }

// EntrySuffix is the suffix the back end's own ILP64 entry points carry
// (the SYMBOLSUFFIX=64_ convention); empty for LP64.
func (w WidthVariant) EntrySuffix() string {
	if w == ILP64 {
		return "64_"
	}
	return ""
}

// Capabilities describes what the selected back end can provide.
type Capabilities struct {
	HasILP64 bool
}

// capabilitiesFor reports the width support of the known vendors.
// Unknown vendors are assumed LP64-only; requesting ILP64 against one
// fails loudly rather than guessing.
func capabilitiesFor(vendor string) Capabilities {
	switch vendor {
	case "openblas", "mkl", "netlib":
		return Capabilities{HasILP64: true}
	default:
		return Capabilities{}
	}
}

// Namespace is the isolated linker namespace of one width variant.
type Namespace struct {
	Width         WidthVariant
	SymbolSuffix  string
	ArchiveName   string
	EntrySuffix   string
	IndexByteSize int
}

// Plan is the computed dual-width linkage for one build. Namespaces is
// ordered LP64 first; LP64 is present in every plan.
type Plan struct {
	Profile    abi.Profile
	Namespaces []Namespace
}

// Has reports whether the plan links the given width.
func (p Plan) Has(w WidthVariant) bool {
	for _, ns := range p.Namespaces {
		if ns.Width == w {
			return true
		}
	}
	return false
}

// Namespace returns the namespace for a linked width.
func (p Plan) Namespace(w WidthVariant) (Namespace, bool) {
	for _, ns := range p.Namespaces {
		if ns.Width == w {
			return ns, true
		}
	}
	return Namespace{}, false
}

// WidthUnavailableError reports an ILP64 request against a back end
// with no 64-bit-index build. Build-fatal: silently downgrading to LP64
// would change the index types callers were promised.
type WidthUnavailableError struct {
	Vendor string
	Width  WidthVariant
}

func (e *WidthUnavailableError) Error() string {
	return fmt.Sprintf("back end %q provides no %s build", e.Vendor, e.Width)
}

// Options selects the widths a build target requires.
type Options struct {
	ILP64 bool
	// Capabilities overrides vendor autodetection, for targets that
	// know their back-end build better than the vendor table does.
	Capabilities *Capabilities
}

// NewPlan computes the linkage plan for a profile. LP64 is always
// included; ILP64 is added only on request and only when the back end
// offers it.
func NewPlan(profile abi.Profile, opts Options) (Plan, error) {
	plan := Plan{
		Profile: profile,
		Namespaces: []Namespace{
			namespaceFor(LP64),
		},
	}

	if !opts.ILP64 {
		return plan, nil
	}

	caps := capabilitiesFor(profile.Vendor)
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	if !caps.HasILP64 {
		return Plan{}, &WidthUnavailableError{Vendor: profile.Vendor, Width: ILP64}
	}

	plan.Namespaces = append(plan.Namespaces, namespaceFor(ILP64))
	return plan, nil
}

func namespaceFor(w WidthVariant) Namespace {
	return Namespace{
		Width:         w,
		SymbolSuffix:  w.SymbolSuffix(),
		ArchiveName:   fmt.Sprintf("libbowstring_%s.a", w),
		EntrySuffix:   w.EntrySuffix(),
		IndexByteSize: w.IndexBytes(),
	}
}

// ParseWidth parses a width selector from flags or lookup options.
func ParseWidth(s string) (WidthVariant, error) {
	switch s {
	case "", "lp64":
		return LP64, nil
	case "ilp64":
		return ILP64, nil
	}
	return 0, fmt.Errorf("unknown width variant %q", s)
}
