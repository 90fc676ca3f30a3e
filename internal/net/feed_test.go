package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/command"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/stubs"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/telemetry"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

func websocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	return parsed.String()
}

func TestFeedStreamsPublishedEvents(t *testing.T) {
	metrics := logging.NewMetrics()
	feed := NewFeed(FeedConfig{Metrics: telemetry.WrapMetrics(metrics)})
	handler := NewFeedHandler(feed, nil)
	srv := httptest.NewServer(nethttp.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read hello: %v", err)
	}
	var hello map[string]any
	if err := json.Unmarshal(payload, &hello); err != nil {
		t.Fatalf("failed to decode hello: %v", err)
	}
	if hello["type"] != "hello" {
		t.Fatalf("first message type %v, want hello", hello["type"])
	}

	// The hello arrives after the subscription registers, so the feed is
	// guaranteed to see this publish.
	feed.Publish(context.Background(), logging.Event{
		Type:     logging.EventType("replay.completed"),
		Step:     42,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReplay,
	})

	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	var message eventMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		t.Fatalf("failed to decode event message: %v", err)
	}
	if message.Type != "event" || message.Event.Step != 42 {
		t.Fatalf("unexpected message %+v", message)
	}
}

func buildVerifiableStream(t *testing.T) ([]byte, replay.Replay) {
	t.Helper()
	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	flags := runtime.FeatureFlags{EnableProduction: true}
	world := stubs.NewWorld(100, flags)
	rec, err := replay.NewRecorder(pack, world, replay.RecorderConfig{Flags: flags})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	cmd := command.Command{
		Type:     stubs.CmdCollectResource,
		Priority: command.PriorityPlayer,
		Step:     0,
		Payload:  map[string]any{"resourceId": "gold", "amount": 5.0},
	}
	world.CommandQueue().Enqueue(cmd)
	if err := rec.RecordCommand(cmd); err != nil {
		t.Fatalf("record: %v", err)
	}
	world.Tick(100)
	rep, err := rec.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, rep, codec.EncodeOptions{}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes(), rep
}

func TestVerifyHandlerAcceptsValidStream(t *testing.T) {
	stream, rep := buildVerifiableStream(t)
	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	handler := &VerifyHandler{Pack: pack, Restore: stubs.Restore}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := nethttp.Post(srv.URL, "application/x-ndjson", bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("post stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "verified" || body.Checksum != rep.Sim.EndStateChecksum {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestVerifyHandlerReportsDivergence(t *testing.T) {
	stream, _ := buildVerifiableStream(t)
	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	pack.Digest.Hash = fmt.Sprintf("xxh64:%016x", xxhash.Sum64String("other pack"))
	handler := &VerifyHandler{Pack: pack, Restore: stubs.Restore}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := nethttp.Post(srv.URL, "application/x-ndjson", bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("post stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", resp.StatusCode)
	}
}

func TestVerifyHandlerRejectsMalformedStream(t *testing.T) {
	pack, err := stubs.Pack()
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	handler := &VerifyHandler{Pack: pack, Restore: stubs.Restore}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := nethttp.Post(srv.URL, "application/x-ndjson", bytes.NewReader([]byte("not json\n")))
	if err != nil {
		t.Fatalf("post stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}
