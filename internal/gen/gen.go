// Package gen emits ABI-correct C shim sources for every routine in the
// signature registry. Each shim exposes the library's canonical calling
// convention (everything by reference, scalar results through a leading
// output parameter, no hidden length arguments) and internally calls
// either the back end's native Fortran entry point or its C-convention
// entry point, as decided by the active ABI profile.
//
// Generation is deterministic: identical (registry, profile, plan,
// precision set) inputs produce byte-identical output. The build cache
// depends on this.
package gen

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"

	"github.com/quiverlab/bowstring/internal/abi"
	"github.com/quiverlab/bowstring/internal/link"
	"github.com/quiverlab/bowstring/internal/registry"
)

// Artifact is one generated source file.
type Artifact struct {
	Routine   string
	Kind      registry.Kind
	Precision string
	Width     string
	Symbol    string
	Bridged   bool
	Filename  string
	Source    []byte
}

// Result is the full output of one generation run.
type Result struct {
	Key       string
	Header    Artifact
	Artifacts []Artifact
	Manifest  Artifact
}

// UnsupportedSignatureError reports a routine whose parameter shape has
// no translation under the active convention. Generation fails fast on
// it; silently skipping the routine would defer the failure to a
// missing-symbol error at link time.
type UnsupportedSignatureError struct {
	Routine   string
	Precision registry.Precision
	Reason    string
}

func (e *UnsupportedSignatureError) Error() string {
	return fmt.Sprintf("unsupported signature %s%s: %s", e.Precision, e.Routine, e.Reason)
}

// Params are the immutable inputs of a generation run.
type Params struct {
	Registry *registry.Registry
	Profile  abi.Profile
	Plan     link.Plan
	// Precisions restricts instantiation; nil means all four.
	Precisions []registry.Precision
	// ManifestPackage names the package of the generated Go symbol
	// index; defaults to "shims".
	ManifestPackage string
}

func (p Params) precisions() []registry.Precision {
	if len(p.Precisions) == 0 {
		return registry.AllPrecisions
	}
	// Normalize to the fixed generator order regardless of how the
	// caller listed them.
	var out []registry.Precision
	for _, want := range registry.AllPrecisions {
		for _, have := range p.Precisions {
			if have == want {
				out = append(out, want)
				break
			}
		}
	}
	return out
}

// CacheKey is the build-cache key of a generation run: a content hash
// of everything the output depends on.
func CacheKey(p Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "bowstring-gen-v1\n")
	fmt.Fprintf(h, "registry=%s\n", p.Registry.Hash())
	fmt.Fprintf(h, "profile=%s\n", p.Profile)
	for _, ns := range p.Plan.Namespaces {
		fmt.Fprintf(h, "width=%s\n", ns.Width)
	}
	for _, prec := range p.precisions() {
		fmt.Fprintf(h, "precision=%s\n", prec)
	}
	fmt.Fprintf(h, "manifest=%s\n", p.ManifestPackage)
	return hex.EncodeToString(h.Sum(nil))
}

var shimTmpl = template.Must(template.New("shim").Parse(
	`/* Code generated by bowstring. DO NOT EDIT. */

#include "bowstring_abi.h"

{{.Extern}}

void {{.Symbol}}({{.ParamList}})
{
	{{.Body}}
}
`))

type shimData struct {
	Symbol    string
	ParamList string
	Extern    string
	Body      string
}

// Generate runs the full expansion: registry order x requested
// precisions x planned widths. Any untranslatable routine aborts the
// run with UnsupportedSignatureError.
func Generate(p Params) (*Result, error) {
	res := &Result{Key: CacheKey(p)}
	res.Header = headerArtifact()

	for _, sig := range p.Registry.Routines {
		for _, prec := range intersect(sig.InstantiationPrecisions(), p.precisions()) {
			for _, ns := range p.Plan.Namespaces {
				art, err := generateShim(sig, prec, ns, p.Profile)
				if err != nil {
					return nil, err
				}
				res.Artifacts = append(res.Artifacts, art)
			}
		}
	}

	manifest, err := manifestArtifact(p.ManifestPackage, res.Artifacts)
	if err != nil {
		return nil, err
	}
	res.Manifest = manifest

	artifactsGenerated.Add(float64(len(res.Artifacts)))
	log.Debug().
		Int("artifacts", len(res.Artifacts)).
		Str("vendor", p.Profile.Vendor).
		Bool("cblas_bridge", p.Profile.UsesCBLASBridge).
		Msg("Shim generation complete")
	return res, nil
}

func intersect(have, want []registry.Precision) []registry.Precision {
	var out []registry.Precision
	for _, h := range have {
		for _, w := range want {
			if h == w {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

func generateShim(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace, profile abi.Profile) (Artifact, error) {
	if sig.HasReturn() {
		switch sig.Returns {
		case registry.ScalarReal, registry.ScalarComplex, registry.Integer:
		default:
			return Artifact{}, &UnsupportedSignatureError{
				Routine: sig.Name, Precision: p,
				Reason: fmt.Sprintf("return type %q cannot be passed by value", sig.Returns),
			}
		}
	}

	// The bridge is a property of the profile, not of the routine: a
	// bridged back end never gets native-convention calls, even for
	// routines whose argument shapes happen to coincide.
	bridged := profile.UsesCBLASBridge

	var data shimData
	var err error
	if bridged {
		data, err = bridgedShim(sig, p, ns)
	} else {
		data, err = passthroughShim(sig, p, ns)
	}
	if err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	if err := shimTmpl.Execute(&buf, data); err != nil {
		return Artifact{}, fmt.Errorf("rendering shim for %s: %w", data.Symbol, err)
	}

	return Artifact{
		Routine:   sig.Name,
		Kind:      sig.Kind,
		Precision: p.String(),
		Width:     ns.Width.String(),
		Symbol:    data.Symbol,
		Bridged:   bridged,
		Filename:  data.Symbol + ".c",
		Source:    buf.Bytes(),
	}, nil
}

// canonicalParams renders the shim's own parameter list: an output
// pointer for the result when the routine is a function, then every
// declared parameter by reference, in registry order.
func canonicalParams(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) (string, error) {
	var parts []string
	if sig.HasReturn() {
		rt, err := cType(sig.Returns, p, ns)
		if err != nil {
			return "", err
		}
		parts = append(parts, rt+" *ret")
	}
	for _, prm := range sig.Params {
		ct, err := paramCType(prm, p, ns)
		if err != nil {
			return "", err
		}
		parts = append(parts, ct+" *"+prm.Name)
	}
	return strings.Join(parts, ", "), nil
}

// passthroughShim calls the native Fortran entry point directly, adding
// only the uniform symbol name and the hidden trailing length argument
// for each character parameter.
func passthroughShim(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) (shimData, error) {
	paramList, err := canonicalParams(sig, p, ns)
	if err != nil {
		return shimData{}, err
	}

	entry := fortranEntry(sig, p, ns)

	retType := "void"
	if sig.HasReturn() {
		retType, err = cType(sig.Returns, p, ns)
		if err != nil {
			return shimData{}, err
		}
	}

	var externParams, callArgs []string
	for _, prm := range sig.Params {
		ct, err := paramCType(prm, p, ns)
		if err != nil {
			return shimData{}, err
		}
		externParams = append(externParams, ct+" *"+prm.Name)
		callArgs = append(callArgs, prm.Name)
	}
	for _, cp := range sig.CharParams() {
		externParams = append(externParams, "bowstring_charlen_t "+cp.Name+"_len")
		callArgs = append(callArgs, "(bowstring_charlen_t)1")
	}

	call := fmt.Sprintf("%s(%s);", entry, strings.Join(callArgs, ", "))
	if sig.HasReturn() {
		call = "*ret = " + call
	}

	return shimData{
		Symbol:    ExportedSymbol(sig.Name, p, ns.Width),
		ParamList: paramList,
		Extern:    fmt.Sprintf("extern %s %s(%s);", retType, entry, strings.Join(externParams, ", ")),
		Body:      call,
	}, nil
}

func bridgedShim(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) (shimData, error) {
	if sig.Kind == registry.KindLAPACK {
		return lapackeShim(sig, p, ns)
	}
	return cblasShim(sig, p, ns)
}

// cblasNeedsLayout reports whether the routine's CBLAS entry point takes
// the leading storage-order argument. Level 2/3 routines do; they are
// the ones carrying character flags or leading-dimension arguments.
func cblasNeedsLayout(sig registry.RoutineSignature) bool {
	if len(sig.CharParams()) > 0 {
		return true
	}
	for _, prm := range sig.Params {
		if strings.HasPrefix(prm.Name, "ld") {
			return true
		}
	}
	return false
}

// cblasShim repacks the canonical call into the CBLAS signature:
// integers and character flags by value, complex scalars by pointer,
// no trailing length arguments, and scalar results through the CBLAS
// return value (or the _sub output parameter for complex results)
// instead of the native return-by-value path.
func cblasShim(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) (shimData, error) {
	if sig.HasWorkspaceParam() {
		return shimData{}, &UnsupportedSignatureError{
			Routine: sig.Name, Precision: p,
			Reason: "workspace arguments have no CBLAS form",
		}
	}

	paramList, err := canonicalParams(sig, p, ns)
	if err != nil {
		return shimData{}, err
	}

	complexRet := sig.Returns == registry.ScalarComplex
	entry := "cblas_" + fortranStem(sig, p)
	if complexRet {
		entry += "_sub"
	}
	entry += ns.EntrySuffix

	var externParams, callArgs []string
	if cblasNeedsLayout(sig) {
		// Level 2/3 routines take the storage-order flag; the library
		// is column-major throughout.
		externParams = append(externParams, "int order")
		callArgs = append(callArgs, "CblasColMajor")
	}

	for _, prm := range sig.Params {
		ct, err := paramCType(prm, p, ns)
		if err != nil {
			return shimData{}, err
		}
		switch prm.Type {
		case registry.Integer:
			externParams = append(externParams, ct+" "+prm.Name)
			callArgs = append(callArgs, "*"+prm.Name)
		case registry.Character:
			helper, ok := cblasCharHelpers[prm.Name]
			if !ok {
				return shimData{}, &UnsupportedSignatureError{
					Routine: sig.Name, Precision: p,
					Reason: fmt.Sprintf("character argument %q has no CBLAS flag translation", prm.Name),
				}
			}
			externParams = append(externParams, "int "+prm.Name)
			callArgs = append(callArgs, fmt.Sprintf("%s(*%s)", helper, prm.Name))
		case registry.ScalarReal:
			externParams = append(externParams, ct+" "+prm.Name)
			callArgs = append(callArgs, "*"+prm.Name)
		case registry.ScalarComplex:
			// CBLAS takes complex scalars by pointer.
			externParams = append(externParams, ct+" *"+prm.Name)
			callArgs = append(callArgs, prm.Name)
		default:
			externParams = append(externParams, ct+" *"+prm.Name)
			callArgs = append(callArgs, prm.Name)
		}
	}

	retType := "void"
	var body string
	switch {
	case complexRet:
		rt, err := cType(sig.Returns, p, ns)
		if err != nil {
			return shimData{}, err
		}
		externParams = append(externParams, rt+" *ret")
		body = fmt.Sprintf("%s(%s, ret);", entry, strings.Join(callArgs, ", "))
	case sig.Returns == registry.Integer:
		intType, err := cType(sig.Returns, p, ns)
		if err != nil {
			return shimData{}, err
		}
		if cblasZeroBasedIndex[sig.Name] {
			// CBLAS index results are size_t and zero-based; shift to
			// the one-based result the native entry points return.
			retType = "size_t"
			body = fmt.Sprintf("*ret = (%s)(%s(%s) + 1);", intType, entry, strings.Join(callArgs, ", "))
		} else {
			retType = intType
			body = fmt.Sprintf("*ret = (%s)%s(%s);", intType, entry, strings.Join(callArgs, ", "))
		}
	case sig.HasReturn():
		retType, err = cType(sig.Returns, p, ns)
		if err != nil {
			return shimData{}, err
		}
		body = fmt.Sprintf("*ret = %s(%s);", entry, strings.Join(callArgs, ", "))
	default:
		body = fmt.Sprintf("%s(%s);", entry, strings.Join(callArgs, ", "))
	}

	return shimData{
		Symbol:    ExportedSymbol(sig.Name, p, ns.Width),
		ParamList: paramList,
		Extern:    fmt.Sprintf("extern %s %s(%s);", retType, entry, strings.Join(externParams, ", ")),
		Body:      body,
	}, nil
}

// lapackeWorkCounts are the integer parameters that size caller-provided
// workspace; the LAPACKE entry points allocate internally, so both the
// workspace arrays and their size arguments drop out of the bridged call.
var lapackeWorkCounts = map[string]bool{
	"lwork":  true,
	"lrwork": true,
	"liwork": true,
}

// lapackeShim repacks a LAPACK call into its LAPACKE signature. The
// routine's info output parameter receives the LAPACKE return value;
// workspace arguments vanish.
func lapackeShim(sig registry.RoutineSignature, p registry.Precision, ns link.Namespace) (shimData, error) {
	if sig.HasReturn() {
		return shimData{}, &UnsupportedSignatureError{
			Routine: sig.Name, Precision: p,
			Reason: "LAPACK function results have no LAPACKE translation",
		}
	}
	hasInfo := false
	for _, prm := range sig.Params {
		if prm.Name == "info" && prm.Type == registry.Integer {
			hasInfo = true
		}
	}
	if !hasInfo {
		return shimData{}, &UnsupportedSignatureError{
			Routine: sig.Name, Precision: p,
			Reason: "no integer info argument to receive the LAPACKE status",
		}
	}

	paramList, err := canonicalParams(sig, p, ns)
	if err != nil {
		return shimData{}, err
	}

	entry := lapackeEntry(sig, p, ns)
	intType, err := cType(registry.Integer, p, ns)
	if err != nil {
		return shimData{}, err
	}

	externParams := []string{"int matrix_layout"}
	callArgs := []string{"LAPACK_COL_MAJOR"}

	for _, prm := range sig.Params {
		if prm.Name == "info" || prm.Type == registry.Workspace || lapackeWorkCounts[prm.Name] {
			continue
		}
		ct, err := paramCType(prm, p, ns)
		if err != nil {
			return shimData{}, err
		}
		switch prm.Type {
		case registry.Integer, registry.ScalarReal:
			// Scalars go by value; integer arrays (pivot vectors and
			// friends) keep their pointer shape in the default case.
			externParams = append(externParams, ct+" "+prm.Name)
			callArgs = append(callArgs, "*"+prm.Name)
		case registry.Character:
			externParams = append(externParams, "char "+prm.Name)
			callArgs = append(callArgs, "*"+prm.Name)
		case registry.ScalarComplex:
			externParams = append(externParams, ct+" *"+prm.Name)
			callArgs = append(callArgs, prm.Name)
		default:
			externParams = append(externParams, ct+" *"+prm.Name)
			callArgs = append(callArgs, prm.Name)
		}
	}

	return shimData{
		Symbol:    ExportedSymbol(sig.Name, p, ns.Width),
		ParamList: paramList,
		Extern:    fmt.Sprintf("extern %s %s(%s);", intType, entry, strings.Join(externParams, ", ")),
		Body:      fmt.Sprintf("*info = %s(%s);", entry, strings.Join(callArgs, ", ")),
	}, nil
}

// Write materializes the result in the build output directory.
func (r *Result) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	write := func(a Artifact) error {
		if err := os.WriteFile(filepath.Join(dir, a.Filename), a.Source, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", a.Filename, err)
		}
		return nil
	}
	if err := write(r.Header); err != nil {
		return err
	}
	for _, a := range r.Artifacts {
		if err := write(a); err != nil {
			return err
		}
	}
	return write(r.Manifest)
}
