// Package meshd talks to bluetooth-meshd over D-Bus.
//
// Client implements the Network1 calls (Attach, Join, ImportLocalNode) and
// hands out Node1 handles for Send. Remote errors keep the daemon's error
// name and text; transport failures are reported as
// domain.ErrBusUnavailable.
package meshd
