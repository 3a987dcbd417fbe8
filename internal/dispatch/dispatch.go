// Package dispatch is the uniform runtime lookup surface over the
// generated shim symbols. A Table is built once from the providers the
// build linked, is immutable afterward, and is safe for concurrent
// readers without locking. Lookups default to the LP64 variant; ILP64
// is strictly opt-in.
package dispatch

import (
	"fmt"

	"github.com/quiverlab/bowstring/internal/gen"
	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

// RoutineKey identifies one routine instantiation within a width.
type RoutineKey struct {
	Name      string
	Precision registry.Precision
}

// Funcs maps routine instantiations to their bound function values.
type Funcs map[RoutineKey]any

// Provider supplies the bound callables of one width variant. The
// netlib cgo build and the pure-Go fallback both satisfy this.
type Provider interface {
	Name() string
	Width() link.WidthVariant
	Funcs() Funcs
}

// Callable is a bound routine plus the introspection callers need to
// choose compatible buffer types.
type Callable struct {
	symbol    string
	precision registry.Precision
	width     link.WidthVariant
	fn        any
}

// Func returns the bound function value. Callers type-assert to the
// concrete signature matching the routine and width.
func (c Callable) Func() any { return c.fn }

// Symbol returns the exported shim symbol the callable is bound to.
func (c Callable) Symbol() string { return c.symbol }

// IntWidth returns the integer byte width (4 or 8) of the bound
// variant.
func (c Callable) IntWidth() int { return c.width.IndexBytes() }

// Width returns the bound width variant.
func (c Callable) Width() link.WidthVariant { return c.width }

// Precision returns the bound precision.
func (c Callable) Precision() registry.Precision { return c.precision }

// RoutineNotFoundError reports a lookup for which no generated symbol
// exists. Recoverable: the caller may fall back to another routine.
type RoutineNotFoundError struct {
	Name      string
	Precision registry.Precision
	Width     link.WidthVariant
}

func (e *RoutineNotFoundError) Error() string {
	return fmt.Sprintf("no symbol %s", gen.ExportedSymbol(e.Name, e.Precision, e.Width))
}

// WidthVariantNotLinkedError reports a lookup against a width the build
// did not link. Recoverable: the caller may retry with LP64 buffers.
type WidthVariantNotLinkedError struct {
	Width link.WidthVariant
}

func (e *WidthVariantNotLinkedError) Error() string {
	return fmt.Sprintf("width variant %s was not linked into this build", e.Width)
}

type lookupOpts struct {
	width link.WidthVariant
}

// LookupOption adjusts a lookup. The zero configuration resolves LP64.
type LookupOption func(*lookupOpts)

// WithWidth opts in to a specific width variant.
func WithWidth(w link.WidthVariant) LookupOption {
	return func(o *lookupOpts) { o.width = w }
}

type tableKey struct {
	name      string
	precision registry.Precision
	width     link.WidthVariant
}

// Table is the immutable dispatch table of one process.
type Table struct {
	entries map[tableKey]Callable
	linked  map[link.WidthVariant]bool
}

// NewTable builds the dispatch table for a link plan. Providers whose
// width the plan does not link are ignored, so an ILP64 provider can be
// registered unconditionally and still stay invisible in LP64-only
// builds.
func NewTable(plan link.Plan, providers ...Provider) *Table {
	t := &Table{
		entries: make(map[tableKey]Callable),
		linked:  make(map[link.WidthVariant]bool),
	}
	for _, ns := range plan.Namespaces {
		t.linked[ns.Width] = true
	}
	for _, p := range providers {
		if !t.linked[p.Width()] {
			continue
		}
		for rk, fn := range p.Funcs() {
			k := tableKey{name: rk.Name, precision: rk.Precision, width: p.Width()}
			t.entries[k] = Callable{
				symbol:    gen.ExportedSymbol(rk.Name, rk.Precision, p.Width()),
				precision: rk.Precision,
				width:     p.Width(),
				fn:        fn,
			}
		}
	}
	return t
}

// Lookup resolves a routine at a precision. With no width option the
// result is always LP64-bound, even in builds where ILP64 is also
// linked; callers opt in to ILP64 explicitly.
func (t *Table) Lookup(name string, p registry.Precision, opts ...LookupOption) (Callable, error) {
	o := lookupOpts{width: link.LP64}
	for _, opt := range opts {
		opt(&o)
	}

	if !t.linked[o.width] {
		lookupMisses.WithLabelValues("width_not_linked").Inc()
		return Callable{}, &WidthVariantNotLinkedError{Width: o.width}
	}

	c, ok := t.entries[tableKey{name: name, precision: p, width: o.width}]
	if !ok {
		lookupMisses.WithLabelValues("routine_not_found").Inc()
		return Callable{}, &RoutineNotFoundError{Name: name, Precision: p, Width: o.width}
	}
	lookupHits.Inc()
	return c, nil
}

// Symbols returns the exported symbols of the table in no particular
// order, for introspection and the symbols CLI command.
func (t *Table) Symbols() []string {
	out := make([]string, 0, len(t.entries))
	for _, c := range t.entries {
		out = append(out, c.symbol)
	}
	return out
}
