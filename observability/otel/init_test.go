package otel

import (
	"context"
	"testing"
)

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
}

func TestInitWithoutExportersIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "poold"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresEndpointForExport(t *testing.T) {
	if _, err := Init(context.Background(), Config{ServiceName: "poold", Traces: true}); err == nil {
		t.Fatalf("expected missing endpoint to fail")
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" x-api-key = abc ,broken,=novalue, tenant=pool ")
	if len(got) != 2 || got["x-api-key"] != "abc" || got["tenant"] != "pool" {
		t.Fatalf("unexpected headers %v", got)
	}
}
