package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"flowcore/internal/blob"
	"flowcore/pkg/domain"
)

func TestExpvarRecorderAggregatesServiceOperations(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	svc, _, err := NewInMemoryService(AllowAll{}, blob.NewMemory(), nil, WithMetrics(recorder))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := svc.CreateActor(ctx, domain.Actor{Name: "Lia", Role: domain.RoleLibrarian}); err != nil {
		t.Fatalf("create actor: %v", err)
	}
	if _, err := svc.BorrowBook(ctx, "ghost", "missing"); err == nil {
		t.Fatal("expected borrow of missing book to fail")
	}

	snap := recorder.Snapshot()
	if snap.Results["create_actor"]["success"] != 1 {
		t.Fatalf("create_actor results %v", snap.Results["create_actor"])
	}
	if snap.Results["borrow_book"]["error"] != 1 {
		t.Fatalf("borrow_book results %v", snap.Results["borrow_book"])
	}
	if _, ok := snap.DurationsMS["create_actor"]; !ok {
		t.Fatalf("missing duration total for create_actor: %v", snap.DurationsMS)
	}
	if !strings.HasPrefix(recorder.Name(), "flowcore_service_metrics_") {
		t.Fatalf("generated name %q", recorder.Name())
	}
}

func TestJSONTracerRecordsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	svc, _, err := NewInMemoryService(AllowAll{}, blob.NewMemory(), nil, WithTracer(tracer))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := svc.CreateActor(ctx, domain.Actor{Name: "Mo", Role: domain.RoleMember}); err != nil {
		t.Fatalf("create actor: %v", err)
	}
	if _, err := svc.ReturnBook(ctx, "ghost", "missing"); err == nil {
		t.Fatal("expected return of missing book to fail")
	}

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Operation != "create_actor" || entries[0].Status != "success" {
		t.Fatalf("first span %+v", entries[0])
	}
	if entries[1].Operation != "return_book" || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("second span %+v", entries[1])
	}
	if entries[1].EndedAt.Before(entries[1].StartedAt) {
		t.Fatalf("span ends before it starts: %+v", entries[1])
	}

	dec := json.NewDecoder(&buf)
	var lines int
	for dec.More() {
		var entry JSONTraceEntry
		if err := dec.Decode(&entry); err != nil {
			t.Fatalf("decode span line: %v", err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 encoded span lines, got %d", lines)
	}
}
