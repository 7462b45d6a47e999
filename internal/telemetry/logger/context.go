package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerKey  contextKey = "meshnode.logger"
	cycleIDKey contextKey = "meshnode.cycle_id"
	nodeKey    contextKey = "meshnode.node"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithCycleID tags the context with an attach cycle id.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// CycleIDFromContext extracts the attach cycle id from context.
func CycleIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}

// WithNode tags the context with the node identity.
func WithNode(ctx context.Context, node string) context.Context {
	return context.WithValue(ctx, nodeKey, node)
}

// NodeFromContext extracts the node identity from context.
func NodeFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(nodeKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the node identity and cycle id found in the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if node := NodeFromContext(ctx); node != "" {
		l = l.With("node", node)
	}
	if cycleID := CycleIDFromContext(ctx); cycleID != "" {
		l = l.With("cycle_id", cycleID)
	}

	return l
}
