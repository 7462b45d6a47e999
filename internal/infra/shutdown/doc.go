// Package shutdown coordinates process teardown.
//
// Hooks are registered while components start and run in reverse order once
// SIGINT or SIGTERM arrives or the parent context ends:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("bus objects", srv.Unexport)
//	err := h.Wait(ctx)
package shutdown
