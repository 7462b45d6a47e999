// Package domain defines the core domain models for meshnode.
//
// Domain models are pure value objects without any IO dependencies or
// bus coupling. This package contains:
//
//   - NodeIdentity: the 128-bit application identity on the mesh
//   - AuthToken: the daemon-issued 64-bit node token
//   - Element: a local addressable endpoint of the node
//   - NodeDescription: the JSON document passed to ImportLocalNode
//   - Errors: domain-specific error definitions
package domain
