package services_test

import (
	"context"
	"testing"

	"digestcast/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithMessageID(ctx, "msg-42")
	ctx = services.WithSender(ctx, "news@daily.example")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if id, ok := services.MessageIDFromContext(ctx); !ok || id != "msg-42" {
		t.Fatalf("unexpected message id: %v %v", id, ok)
	}
	if sender, ok := services.SenderFromContext(ctx); !ok || sender != "news@daily.example" {
		t.Fatalf("unexpected sender: %v %v", sender, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithSender(context.Background(), "")
	ctx = services.WithMessageID(ctx, "")
	if _, ok := services.SenderFromContext(ctx); ok {
		t.Fatal("expected no sender value")
	}
	if _, ok := services.MessageIDFromContext(ctx); ok {
		t.Fatal("expected no message id")
	}
}
