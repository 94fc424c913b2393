package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

func exportEvents() []log.Event {
	status := wire.StatusAccepted
	rtt := 1500 * time.Microsecond
	return []log.Event{
		{
			Timestamp: testTime, ConnectionID: "abc12345", Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: wire.FrameCommand, Key: "mount/preset/index", Value: "1"},
		},
		{
			Timestamp: testTime.Add(time.Millisecond), ConnectionID: "abc12345", Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage,
			Message: &log.MessageEvent{Type: wire.FrameResponse, Status: &status, RoundTrip: &rtt},
		},
		log.NewStateChange("abc12345", log.StateEntityConnection, "READY", "DISCONNECTED", "peer closed"),
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, log.Filter{}, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), data)
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if first["ConnectionID"] != "abc12345" {
		t.Errorf("expected ConnectionID abc12345, got %v", first["ConnectionID"])
	}
	msg, ok := first["Message"].(map[string]any)
	if !ok {
		t.Fatalf("expected Message object, got %v", first["Message"])
	}
	if msg["Key"] != "mount/preset/index" {
		t.Errorf("expected key, got %v", msg["Key"])
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, log.Filter{}, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	if records[0][0] != "timestamp" {
		t.Errorf("unexpected header: %v", records[0])
	}

	request := records[1]
	if request[2] != "OUT" || request[5] != "COMMAND" || request[6] != "mount/preset/index" || request[7] != "1" {
		t.Errorf("unexpected request row: %v", request)
	}

	response := records[2]
	if response[8] != "202" || response[9] != "1500" {
		t.Errorf("unexpected response row: %v", response)
	}

	state := records[3]
	if state[4] != "STATE" || state[7] != "DISCONNECTED" {
		t.Errorf("unexpected state row: %v", state)
	}
}

func TestExportWithFilter(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	dir := log.DirectionIn
	if err := RunExport(path, log.Filter{Direction: &dir}, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 1 inbound event, got %d", len(lines))
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	if err := RunExport(path, log.Filter{}, "xml", ""); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
