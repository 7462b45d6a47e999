// Package connection talks to the status listener of a running meshnode
// process over HTTP.
package connection
