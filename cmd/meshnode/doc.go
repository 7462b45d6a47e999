// Command meshnode attaches a Bluetooth mesh node to bluetooth-meshd over
// D-Bus and keeps its access token on disk.
//
// The node identity is taken from node.uuid. On first start, or whenever
// the daemon rejects the stored token, the node is imported (or joined,
// with node.recovery=join) and attached again.
//
//	meshnode --config /etc/meshnode.yaml run --attention 0x0438 --interval 30s
//	meshnode token list
package main
