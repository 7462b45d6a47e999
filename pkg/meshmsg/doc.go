// Package meshmsg encodes the access-layer payloads this node sends.
//
// Each supported operation has a named encoder that writes the opcode
// (big-endian) followed by its fixed parameters. There is no general
// message framework: adding an operation means adding one encoder.
//
// ParseOpcode splits inbound payloads into opcode and parameters so
// received messages can be logged by name.
package meshmsg
