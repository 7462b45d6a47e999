package logger

import (
	"context"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("from context")

	if buf.Len() == 0 {
		t.Error("logger from context should write to its buffer")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() should fall back to Default()")
	}
}

func TestCycleIDAndNode(t *testing.T) {
	ctx := WithCycleID(context.Background(), "01hxyz")
	ctx = WithNode(ctx, "9c791e88-7acb-42e5-95ab-ab75cb74d774")

	if got := CycleIDFromContext(ctx); got != "01hxyz" {
		t.Errorf("CycleIDFromContext() = %q", got)
	}
	if got := NodeFromContext(ctx); got != "9c791e88-7acb-42e5-95ab-ab75cb74d774" {
		t.Errorf("NodeFromContext() = %q", got)
	}
	if CycleIDFromContext(context.Background()) != "" || NodeFromContext(context.Background()) != "" {
		t.Error("empty context should carry no ids")
	}
}

func TestL_Enriches(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	ctx := WithLogger(context.Background(), l)
	ctx = WithCycleID(ctx, "01hxyz")
	ctx = WithNode(ctx, "9c791e88-7acb-42e5-95ab-ab75cb74d774")
	L(ctx).Info("attach")

	entry := decodeEntry(t, buf)
	if entry["cycle_id"] != "01hxyz" {
		t.Errorf("cycle_id = %v", entry["cycle_id"])
	}
	if entry["node"] != "9c791e88-7acb-42e5-95ab-ab75cb74d774" {
		t.Errorf("node = %v", entry["node"])
	}
}

func TestL_NoIDs(t *testing.T) {
	l, buf := newJSONLogger(t, "info")

	L(WithLogger(context.Background(), l)).Info("plain")

	entry := decodeEntry(t, buf)
	if _, ok := entry["cycle_id"]; ok {
		t.Error("cycle_id should be absent")
	}
	if _, ok := entry["node"]; ok {
		t.Error("node should be absent")
	}
}
