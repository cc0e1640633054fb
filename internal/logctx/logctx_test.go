package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandler_AddsContextGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(New(slog.NewJSONHandler(&buf, nil))).With("component", "test")

	ctx := WithSessionData(context.Background(), &SessionData{SessionID: "s1", State: "running"})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "textDocument/hover", ID: "1", Type: "request"})
	ctx = WithFeatureData(ctx, &FeatureData{Name: "hover"})
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["component"] != "test" {
		t.Fatalf("With attrs lost: %v", rec)
	}
	sess, _ := rec["sess"].(map[string]any)
	if sess["id"] != "s1" || sess["state"] != "running" {
		t.Fatalf("sess group: %v", rec["sess"])
	}
	rpc, _ := rec["rpc"].(map[string]any)
	if rpc["method"] != "textDocument/hover" || rpc["id"] != "1" {
		t.Fatalf("rpc group: %v", rec["rpc"])
	}
	feat, _ := rec["feature"].(map[string]any)
	if feat["name"] != "hover" {
		t.Fatalf("feature group: %v", rec["feature"])
	}
}

func TestHandler_NoContextNoGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slog.New(New(slog.NewJSONHandler(&buf, nil))).Info("plain")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["sess"]; ok {
		t.Fatalf("unexpected sess group")
	}
}
