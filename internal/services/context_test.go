package services_test

import (
	"context"
	"testing"

	"fileconv/internal/services"
)

func TestRequestIDHelpers(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-123")
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankRequestIDPreservesContext(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "")
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id value")
	}
}
