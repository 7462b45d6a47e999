// Package command defines the meshnode command line.
//
// Commands:
//
//   - run: attach the configured node and stay attached until signalled
//   - token: inspect or edit the persisted token store offline
//   - status: query the status listener of a running node
//   - version: print build information
package command
