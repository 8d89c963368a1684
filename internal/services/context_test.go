package services

import (
	"context"
	"testing"
)

func TestJobIDRoundTrip(t *testing.T) {
	ctx := WithJobID(context.Background(), "job-01J")
	got, ok := JobIDFromContext(ctx)
	if !ok || got != "job-01J" {
		t.Fatalf("got (%q, %v), want (job-01J, true)", got, ok)
	}
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := context.Background()
	if WithJobID(ctx, "") != ctx {
		t.Fatal("empty job id should leave the context untouched")
	}
	if WithStage(ctx, "") != ctx {
		t.Fatal("empty stage should leave the context untouched")
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatal("empty request id should leave the context untouched")
	}
}

func TestLookupsOnBareContext(t *testing.T) {
	ctx := context.Background()
	if v, ok := JobIDFromContext(ctx); ok || v != "" {
		t.Fatalf("JobIDFromContext = (%q, %v), want empty", v, ok)
	}
	if v, ok := StageFromContext(ctx); ok || v != "" {
		t.Fatalf("StageFromContext = (%q, %v), want empty", v, ok)
	}
	if v, ok := RequestIDFromContext(ctx); ok || v != "" {
		t.Fatalf("RequestIDFromContext = (%q, %v), want empty", v, ok)
	}
}

func TestStageAndRequestIDCoexist(t *testing.T) {
	ctx := WithStage(context.Background(), "encode_video")
	ctx = WithRequestID(ctx, "req-7")

	stage, ok := StageFromContext(ctx)
	if !ok || stage != "encode_video" {
		t.Fatalf("stage = (%q, %v)", stage, ok)
	}
	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "req-7" {
		t.Fatalf("request id = (%q, %v)", id, ok)
	}
}
