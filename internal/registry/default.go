package registry

import (
	_ "embed"
	"sync"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry shipped with the module, covering the
// BLAS/LAPACK surface the library consumes. Parsed once; the embedded
// document is validated by tests, so an error here indicates a broken
// build of the module itself.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Parse(defaultYAML)
	})
	return defaultReg, defaultErr
}
