package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/busgo/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func handshakeEvents(ts time.Time) []log.Event {
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: "abc12345-6789", LocalRole: log.RoleClient,
			Direction: log.DirectionOut, Layer: log.LayerAuth, Category: log.CategoryMessage,
			AuthLine: &log.AuthLineEvent{Command: "AUTH", Line: "AUTH EXTERNAL 31303030"},
		},
		{
			Timestamp: ts.Add(time.Millisecond), ConnectionID: "abc12345-6789", LocalRole: log.RoleServer,
			Direction: log.DirectionOut, Layer: log.LayerAuth, Category: log.CategoryMessage,
			AuthLine: &log.AuthLineEvent{Command: "OK", Line: "OK 1d1f3d6e0c8a4c5d9b2b8f7a6e5d4c3b"},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), ConnectionID: "abc12345-6789", LocalRole: log.RoleClient,
			Direction: log.DirectionOut, Layer: log.LayerAuth, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityHandshake, OldState: "WaitingForAuthReply", NewState: "Done"},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), ConnectionID: "abc12345-6789", LocalRole: log.RoleClient,
			Direction: log.DirectionOut, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Frame: log.NewFrameEvent([]byte{0x02, 0x00, 0x00, 0x00, 'h', 'i', 0x00}, 1),
		},
		{
			Timestamp: ts.Add(4 * time.Millisecond), ConnectionID: "abc12345-6789", LocalRole: log.RoleServer,
			Direction: log.DirectionIn, Layer: log.LayerWire, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerWire, Message: "unexpected end of data", Context: "decode"},
		},
	}
}

func TestFormatEvents(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	events := handshakeEvents(ts)

	tests := []struct {
		name  string
		event log.Event
		want  []string
	}{
		{"auth line", events[0], []string{"2026-01-28T10:15:32.123456Z", "[conn:abc12345]", "CLIENT", "OUT", "AUTH AUTH", "AUTH EXTERNAL 31303030"}},
		{"state", events[2], []string{"State", "Entity: HANDSHAKE", "WaitingForAuthReply -> Done"}},
		{"frame", events[3], []string{"TRANSPORT Frame", "Size: 7 bytes", "Fds: 1", "Data: 02000000686900"}},
		{"error", events[4], []string{"SERVER", "IN", "Error", "Message: unexpected end of data", "Context: decode"}},
		{"value", log.Event{
			Timestamp: ts, Layer: log.LayerWire,
			Value: &log.ValueEvent{Signature: "a{sv}", Format: "gvariant", ByteOrder: "LE", Size: 24},
		}, []string{"WIRE Value", "Signature: a{sv}", "Format: gvariant LE", "Size: 24 bytes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatEvent(&buf, tt.event)
			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("expected %q in output:\n%s", want, output)
				}
			}
		})
	}
}

func TestFormatTruncatedFrame(t *testing.T) {
	event := log.Event{Frame: log.NewFrameEvent(make([]byte, log.MaxLogDataSize+1), 0)}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	if !strings.Contains(buf.String(), "(truncated)") {
		t.Errorf("expected truncation marker, got: %s", buf.String())
	}
}

func TestRunViewFilters(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, handshakeEvents(ts))

	layer := log.LayerAuth
	role := log.RoleServer
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer, Role: &role}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "OK 1d1f3d6e") {
		t.Errorf("expected server OK line, got:\n%s", output)
	}
	if strings.Contains(output, "AUTH EXTERNAL") {
		t.Errorf("client line should be filtered out, got:\n%s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.blog"), ViewFilter{}, io.Discard)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("AUTH"); err != nil || l != log.LayerAuth {
		t.Errorf("ParseLayerFlag(AUTH) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(out) = %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("State"); err != nil || c != log.CategoryState {
		t.Errorf("ParseCategoryFlag(State) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
	if r, err := ParseRoleFlag("server"); err != nil || r != log.RoleServer {
		t.Errorf("ParseRoleFlag(server) = %v, %v", r, err)
	}
}

func TestExportJSONL(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, handshakeEvents(ts))
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["ConnectionID"] != "abc12345-6789" {
		t.Errorf("unexpected ConnectionID: %v", first["ConnectionID"])
	}
}

func TestExportCSV(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, handshakeEvents(ts))
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	output := string(data)
	if !strings.HasPrefix(output, "timestamp,connection_id,role,") {
		t.Errorf("unexpected header: %s", output)
	}
	if !strings.Contains(output, "CLIENT,OUT,TRANSPORT,MESSAGE,Frame,7,") {
		t.Errorf("expected frame row, got:\n%s", output)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunFilter(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, handshakeEvents(ts))
	out := filepath.Join(t.TempDir(), "filtered.blog")

	n, err := RunFilter(path, FilterOptions{Output: out, Role: "client", Layer: "auth"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if event.LocalRole != log.RoleClient || event.Layer != log.LayerAuth {
			t.Errorf("unexpected event in output: %+v", event)
		}
	}
}

func TestRunFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	out := filepath.Join(t.TempDir(), "filtered.blog")

	for _, opts := range []FilterOptions{
		{Output: out, TimeStart: "yesterday"},
		{Output: out, Layer: "service"},
		{Output: out, Role: "peer"},
	} {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestRunStats(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, handshakeEvents(ts))

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Format:     buslog v1, created ",
		"Total Events: 5",
		"AUTH:",
		"TRANSPORT:",
		"Connections: 2",
		"Auth lines: 1",
		"Bytes: 0 in, 7 out, 1 fds",
		"Final state: Done",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestRunStatsEmpty(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
