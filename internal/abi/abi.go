// Package abi decides, per selected back end, how generated shims must
// call into it: which Fortran calling convention the back end was built
// with, and whether calls have to route through its C-convention entry
// points (the CBLAS/LAPACKE bridge) to avoid argument-passing mismatches.
package abi

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Convention is a Fortran calling-convention family. The two differ in
// how scalar results and character arguments are passed, which is the
// mismatch the bridge exists to absorb.
type Convention string

const (
	ConventionG77      Convention = "g77"
	ConventionGfortran Convention = "gfortran"
)

// ParseConvention validates a convention name from a flag or config.
func ParseConvention(s string) (Convention, error) {
	switch s {
	case "g77":
		return ConventionG77, nil
	case "gfortran", "gfortran-native":
		return ConventionGfortran, nil
	}
	return "", fmt.Errorf("unknown calling convention %q", s)
}

// BackendClass is the closed classification of back-end vendors. The
// detection policy is a pure function over this tag; vendor strings are
// matched in exactly one place (ClassifyBackend).
type BackendClass int

const (
	// KnownBridgedVendor back ends ship a fixed native convention that
	// is incompatible with the host Fortran runtime; shims always route
	// through their C-convention entry points.
	KnownBridgedVendor BackendClass = iota
	// KnownNativeVendor back ends follow the host toolchain convention
	// and are called through their Fortran entry points directly.
	KnownNativeVendor
	// UnknownVendor back ends get the conservative default: no bridge,
	// host convention, and a logged warning.
	UnknownVendor
)

func (c BackendClass) String() string {
	switch c {
	case KnownBridgedVendor:
		return "known-bridged"
	case KnownNativeVendor:
		return "known-native"
	default:
		return "unknown"
	}
}

// Backend is the tagged identity of a selected back end.
type Backend struct {
	Class BackendClass
	Name  string
}

// knownVendors is the single table of recognized back ends. Extending
// support for a new vendor means one row here, nothing else.
var knownVendors = map[string]BackendClass{
	"accelerate": KnownBridgedVendor, // fixed g77-era ABI, CBLAS-complete
	"mkl":        KnownBridgedVendor, // CBLAS and LAPACKE always present
	"openblas":   KnownNativeVendor,
	"atlas":      KnownNativeVendor,
	"netlib":     KnownNativeVendor, // reference BLAS/LAPACK
	"blis":       KnownNativeVendor,
}

// ClassifyBackend maps a vendor/library selector string to its class.
// Unrecognized names classify as UnknownVendor; classification itself
// never fails.
func ClassifyBackend(name string) Backend {
	if class, ok := knownVendors[name]; ok {
		return Backend{Class: class, Name: name}
	}
	return Backend{Class: UnknownVendor, Name: name}
}

// Profile is the computed ABI decision for one build configuration. It
// is produced once by Detect and passed explicitly through the generator
// and link planner; nothing reads it from ambient state.
type Profile struct {
	Convention      Convention
	UsesCBLASBridge bool
	Vendor          string
}

func (p Profile) String() string {
	return fmt.Sprintf("vendor=%s convention=%s cblas_bridge=%v", p.Vendor, p.Convention, p.UsesCBLASBridge)
}

// DetectOptions are the inputs to ABI detection.
//
// HostConvention is the host Fortran compiler's default convention;
// zero value means gfortran. Override, when non-empty, forces the
// convention for vendors outside the known-bridged set — a g77 override
// also forces the bridge on, since the host toolchain cannot call g77
// entry points directly.
type DetectOptions struct {
	Backend        string
	HostConvention Convention
	Override       Convention
}

// Detect produces the ABI profile for a build configuration.
//
// Detection never fails the build: an unrecognized back end falls back
// to no bridge with a warning. Disabling the bridge when it was needed
// surfaces as a link failure; enabling it when unnecessary could corrupt
// results silently, so the conservative default is off. This fallback is
// documented policy and must not be "hardened" into an error.
func Detect(opts DetectOptions) Profile {
	host := opts.HostConvention
	if host == "" {
		host = ConventionGfortran
	}

	backend := ClassifyBackend(opts.Backend)

	switch backend.Class {
	case KnownBridgedVendor:
		// Fixed-ABI vendors bridge unconditionally; the override does
		// not apply to them.
		return Profile{
			Convention:      ConventionG77,
			UsesCBLASBridge: true,
			Vendor:          backend.Name,
		}

	case KnownNativeVendor:
		if opts.Override != "" {
			return Profile{
				Convention:      opts.Override,
				UsesCBLASBridge: opts.Override == ConventionG77,
				Vendor:          backend.Name,
			}
		}
		return Profile{
			Convention:      host,
			UsesCBLASBridge: false,
			Vendor:          backend.Name,
		}

	default:
		if opts.Override != "" {
			return Profile{
				Convention:      opts.Override,
				UsesCBLASBridge: opts.Override == ConventionG77,
				Vendor:          backend.Name,
			}
		}
		log.Warn().
			Str("backend", backend.Name).
			Str("convention", string(host)).
			Msg("Unrecognized BLAS/LAPACK back end; assuming host convention without CBLAS bridge")
		return Profile{
			Convention:      host,
			UsesCBLASBridge: false,
			Vendor:          backend.Name,
		}
	}
}
