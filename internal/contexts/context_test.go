package contexts

import (
	"errors"
	"testing"
)

func TestWithTraceID(t *testing.T) {
	ctx := t.Context()

	newCtx := WithTraceID(ctx, "at-123")
	if newCtx == ctx {
		t.Error("WithTraceID should return a new context")
	}

	traceID, ok := GetTraceID(newCtx)
	if !ok {
		t.Error("GetTraceID should return true for existing trace id")
	}

	if traceID != "at-123" {
		t.Errorf("expected trace id at-123, got %s", traceID)
	}
}

func TestGetTraceID_Empty(t *testing.T) {
	traceID, ok := GetTraceID(t.Context())
	if ok {
		t.Error("GetTraceID should return false for empty context")
	}

	if traceID != "" {
		t.Errorf("expected empty trace id, got %s", traceID)
	}
}

func TestContainerIsShared(t *testing.T) {
	ctx := WithTraceID(t.Context(), "at-1")
	ctx = WithRequestID(ctx, "ar-1")
	ctx = WithOperationName(ctx, "GET /health")
	ctx = WithUserID(ctx, "u1")

	if v, _ := GetTraceID(ctx); v != "at-1" {
		t.Errorf("expected trace id at-1, got %s", v)
	}

	if v, _ := GetRequestID(ctx); v != "ar-1" {
		t.Errorf("expected request id ar-1, got %s", v)
	}

	if v, _ := GetOperationName(ctx); v != "GET /health" {
		t.Errorf("expected operation name, got %s", v)
	}

	if v, _ := GetUserID(ctx); v != "u1" {
		t.Errorf("expected user id u1, got %s", v)
	}
}

func TestAddError(t *testing.T) {
	ctx := AddError(t.Context(), nil)
	if len(GetErrors(ctx)) != 0 {
		t.Fatal("nil errors must be ignored")
	}

	ctx = AddError(ctx, errors.New("first"))
	ctx = AddError(ctx, errors.New("second"))

	errs := GetErrors(ctx)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}

	if errs[1].Error() != "second" {
		t.Errorf("expected second error, got %v", errs[1])
	}
}
