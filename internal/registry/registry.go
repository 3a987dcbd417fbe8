// Package registry holds the canonical signature declarations for every
// BLAS and LAPACK routine the library links against. The registry is pure
// data: it is edited by maintainers, parsed once per build, and its order
// is significant — downstream shim generation iterates it in file order
// and must be reproducible for build caching.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind identifies which routine family a signature belongs to. Routine
// names are unique within a (kind, precision-prefix) namespace.
type Kind string

const (
	KindBLAS   Kind = "blas"
	KindLAPACK Kind = "lapack"
)

// ParamType is the semantic type of a routine parameter. These are
// deliberately coarser than C types: the generator maps them to concrete
// C types per precision and integer width.
type ParamType string

const (
	ScalarReal    ParamType = "scalar-real"
	ScalarComplex ParamType = "scalar-complex"
	ArrayReal     ParamType = "array-real"
	ArrayComplex  ParamType = "array-complex"
	// ArrayInteger covers index-valued array arguments such as pivot
	// vectors. They stay pointers under every convention, unlike scalar
	// integers, which the C-convention entry points take by value.
	ArrayInteger ParamType = "array-integer"
	Integer      ParamType = "integer"
	Character    ParamType = "character"
	Workspace    ParamType = "workspace"
)

var validParamTypes = map[ParamType]bool{
	ScalarReal:    true,
	ScalarComplex: true,
	ArrayReal:     true,
	ArrayComplex:  true,
	ArrayInteger:  true,
	Integer:       true,
	Character:     true,
	Workspace:     true,
}

// Param is one positional argument of a routine. Order is ABI-significant
// and is preserved exactly as declared.
type Param struct {
	Name string    `yaml:"name"`
	Type ParamType `yaml:"type"`
}

// RoutineSignature is the canonical declaration of one routine.
//
// Precisions restricts which precision prefixes the declaration
// instantiates at; empty means all four. A routine name may appear more
// than once in a kind namespace as long as the precision sets are
// disjoint — this is how element-typed arguments that are real at s/d
// and complex at c/z are declared.
type RoutineSignature struct {
	Name       string    `yaml:"name"`
	Kind       Kind      `yaml:"kind"`
	Precisions []string  `yaml:"precisions,omitempty"`
	Params     []Param   `yaml:"params"`
	Returns    ParamType `yaml:"returns,omitempty"`
}

// InstantiationPrecisions returns the precisions this declaration
// expands at, in the fixed generator order.
func (s RoutineSignature) InstantiationPrecisions() []Precision {
	if len(s.Precisions) == 0 {
		return AllPrecisions
	}
	var out []Precision
	for _, want := range AllPrecisions {
		for _, have := range s.Precisions {
			if p, err := ParsePrecision(have); err == nil && p == want {
				out = append(out, want)
				break
			}
		}
	}
	return out
}

// HasReturn reports whether the routine is a Fortran FUNCTION rather
// than a SUBROUTINE.
func (s RoutineSignature) HasReturn() bool {
	return s.Returns != ""
}

// CharParams returns the character parameters in declaration order.
// These carry the hidden trailing length arguments under the Fortran
// calling convention.
func (s RoutineSignature) CharParams() []Param {
	var out []Param
	for _, p := range s.Params {
		if p.Type == Character {
			out = append(out, p)
		}
	}
	return out
}

// HasArrayParam reports whether the routine takes at least one array
// argument.
func (s RoutineSignature) HasArrayParam() bool {
	for _, p := range s.Params {
		if p.Type == ArrayReal || p.Type == ArrayComplex || p.Type == ArrayInteger {
			return true
		}
	}
	return false
}

// HasWorkspaceParam reports whether the routine takes caller-provided
// workspace. Workspace arguments exist only in the Fortran-convention
// surface; the C-convention entry points allocate internally.
func (s RoutineSignature) HasWorkspaceParam() bool {
	for _, p := range s.Params {
		if p.Type == Workspace {
			return true
		}
	}
	return false
}

// Registry is an ordered set of routine signatures. The order is the file
// order of the source document and never changes across re-parses of the
// same input.
type Registry struct {
	Routines []RoutineSignature
}

// MalformedSignatureError reports a registry document that cannot be
// accepted: unknown semantic types, duplicate names within a kind
// namespace, or missing fields. Registry errors are build-fatal.
type MalformedSignatureError struct {
	Routine string
	Reason  string
}

func (e *MalformedSignatureError) Error() string {
	if e.Routine == "" {
		return fmt.Sprintf("malformed signature registry: %s", e.Reason)
	}
	return fmt.Sprintf("malformed signature for routine %q: %s", e.Routine, e.Reason)
}

// Parse reads a YAML registry document into a Registry. Parsing is pure
// and deterministic: the same bytes always yield the same routine
// ordering, because generation output order (and therefore the build
// cache key) depends on it.
func Parse(data []byte) (*Registry, error) {
	var doc struct {
		Routines []RoutineSignature `yaml:"routines"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedSignatureError{Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if len(doc.Routines) == 0 {
		return nil, &MalformedSignatureError{Reason: "registry declares no routines"}
	}

	seen := make(map[string]bool, len(doc.Routines))
	for _, r := range doc.Routines {
		if r.Name == "" {
			return nil, &MalformedSignatureError{Reason: "routine with empty name"}
		}
		if r.Kind != KindBLAS && r.Kind != KindLAPACK {
			return nil, &MalformedSignatureError{Routine: r.Name, Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
		}
		for _, ps := range r.Precisions {
			if _, err := ParsePrecision(ps); err != nil {
				return nil, &MalformedSignatureError{Routine: r.Name, Reason: fmt.Sprintf("unknown precision %q", ps)}
			}
		}
		for _, p := range r.InstantiationPrecisions() {
			nsKey := fmt.Sprintf("%s/%s/%s", r.Kind, p, r.Name)
			if seen[nsKey] {
				return nil, &MalformedSignatureError{Routine: r.Name, Reason: fmt.Sprintf("duplicate name in (%s, %s) namespace", r.Kind, p)}
			}
			seen[nsKey] = true
		}

		for _, p := range r.Params {
			if p.Name == "" {
				return nil, &MalformedSignatureError{Routine: r.Name, Reason: "parameter with empty name"}
			}
			if !validParamTypes[p.Type] {
				return nil, &MalformedSignatureError{Routine: r.Name, Reason: fmt.Sprintf("unrecognized parameter type %q for %q", p.Type, p.Name)}
			}
		}
		if r.Returns != "" && !validParamTypes[r.Returns] {
			return nil, &MalformedSignatureError{Routine: r.Name, Reason: fmt.Sprintf("unrecognized return type %q", r.Returns)}
		}
	}

	return &Registry{Routines: doc.Routines}, nil
}

// Lookup returns the declaration covering name at the given precision
// within kind, or false if no declaration instantiates there.
func (r *Registry) Lookup(kind Kind, name string, p Precision) (RoutineSignature, bool) {
	for _, s := range r.Routines {
		if s.Kind != kind || s.Name != name {
			continue
		}
		for _, sp := range s.InstantiationPrecisions() {
			if sp == p {
				return s, true
			}
		}
	}
	return RoutineSignature{}, false
}

// Hash returns a stable content hash of the registry, used as one half
// of the shim build-cache key. It is computed over a canonical rendering
// of the routines in registry order, so it changes exactly when the
// declared signatures change.
func (r *Registry) Hash() string {
	h := sha256.New()
	for _, s := range r.Routines {
		fmt.Fprintf(h, "%s/%s[%v](", s.Kind, s.Name, s.InstantiationPrecisions())
		for _, p := range s.Params {
			fmt.Fprintf(h, "%s:%s,", p.Name, p.Type)
		}
		fmt.Fprintf(h, ")->%s;", s.Returns)
	}
	return hex.EncodeToString(h.Sum(nil))
}
