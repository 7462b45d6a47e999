// Package service implements the node attachment lifecycle.
//
// An Attacher drives one node identity through the daemon's Network
// service: attach with the stored token, recover once through import or
// join when the daemon rejects it, then attach again. The state is an
// explicit State value so each transition can be driven and observed on
// its own.
//
// ProvisioningCallback receives JoinComplete and JoinFailed from the daemon
// and resolves the PendingJoin armed by the join branch. A PendingJoin
// resolves at most once; later callbacks are rejected.
//
// The remote services and the token store are consumed through the small
// interfaces in ports.go so tests can substitute fakes.
package service
