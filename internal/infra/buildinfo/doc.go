// Package buildinfo exposes the version of the meshnode binary.
//
// Release builds inject values through ldflags:
//
//	go build -ldflags "-X github.com/yndnr/meshnode-go/internal/infra/buildinfo.Version=v0.3.0"
//
// Development builds fall back to the module and VCS data embedded by the
// Go toolchain.
package buildinfo
