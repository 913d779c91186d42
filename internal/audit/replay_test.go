package audit

import (
	"path/filepath"
	"testing"
	"time"
)

// writeTestLog creates a temp audit log with known entries.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	stamp := func(offset time.Duration) string {
		return base.Add(offset).Format(TimestampFormat)
	}

	entries := []Entry{
		{Timestamp: stamp(0), RequestID: "r-1", Transcript: "abre firefox", ActionID: "OPEN_FIREFOX", Confidence: 0.91, Decision: "auto_execute", Execution: Execution{Executed: true}},
		{Timestamp: stamp(2 * time.Second), RequestID: "r-2", Transcript: "pon musica", ActionID: "PLAY_MUSIC", Confidence: 0.55, Decision: "confirm"},
		{Timestamp: stamp(4 * time.Second), RequestID: "r-2", Transcript: "pon musica", ActionID: "PLAY_MUSIC", Confidence: 0.55, Decision: "confirmed_execute", Execution: Execution{Executed: true}},
		{Timestamp: stamp(6 * time.Second), RequestID: "r-3", Transcript: "apaga el sistema", ActionID: "SHUTDOWN", Confidence: 0.22, Decision: "reject", Reason: "confidence below minimum"},
		{Timestamp: stamp(8 * time.Second), RequestID: "r-4", Transcript: "abre firefox", ActionID: "OPEN_FIREFOX", Confidence: 0.60, Decision: "declined", Reason: "operator declined confirmation"},
	}
	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestReplayFiltersByRequestID(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{RequestID: "r-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries for r-2, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.RequestID != "r-2" {
			t.Errorf("unexpected request ID %s", e.RequestID)
		}
	}
}

func TestReplayFiltersByActionID(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{ActionID: "OPEN_FIREFOX"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 OPEN_FIREFOX entries, got %d", len(result.Entries))
	}
}

func TestReplayEmptyFilterMatchesEverything(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 5 {
		t.Errorf("expected all 5 entries, got %d", len(result.Entries))
	}
}

func TestReplayTimeRangeFrom(t *testing.T) {
	path := writeTestLog(t)

	from := time.Date(2026, 3, 10, 14, 0, 5, 0, time.UTC)
	result, err := Replay(path, ReplayFilter{From: from})
	if err != nil {
		t.Fatal(err)
	}
	// Entries at 14:00:06 and 14:00:08.
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries after from filter, got %d", len(result.Entries))
	}
}

func TestReplayTimeRangeTo(t *testing.T) {
	path := writeTestLog(t)

	to := time.Date(2026, 3, 10, 14, 0, 3, 0, time.UTC)
	result, err := Replay(path, ReplayFilter{To: to})
	if err != nil {
		t.Fatal(err)
	}
	// Entries at 14:00:00 and 14:00:02.
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 entries before to filter, got %d", len(result.Entries))
	}
}

func TestReplayTimeRangeBoth(t *testing.T) {
	path := writeTestLog(t)

	from := time.Date(2026, 3, 10, 14, 0, 1, 0, time.UTC)
	to := time.Date(2026, 3, 10, 14, 0, 7, 0, time.UTC)
	result, err := Replay(path, ReplayFilter{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	// Entries at 14:00:02, 14:00:04, 14:00:06.
	if len(result.Entries) != 3 {
		t.Errorf("expected 3 entries in time window, got %d", len(result.Entries))
	}
}

func TestReplayEmptyResult(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{RequestID: "r-nonexistent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
	if result.Summary.Total != 0 {
		t.Errorf("expected 0 total, got %d", result.Summary.Total)
	}
}

func TestReplaySummaryCountsCorrect(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	s := result.Summary
	if s.Total != 5 {
		t.Errorf("total: expected 5, got %d", s.Total)
	}
	if s.ExecutedCount != 2 {
		t.Errorf("executed: expected 2, got %d", s.ExecutedCount)
	}
	if s.ConfirmCount != 1 {
		t.Errorf("confirm: expected 1, got %d", s.ConfirmCount)
	}
	if s.RejectedCount != 1 {
		t.Errorf("rejected: expected 1, got %d", s.RejectedCount)
	}
	if s.DeclinedCount != 1 {
		t.Errorf("declined: expected 1, got %d", s.DeclinedCount)
	}
	if s.FirstTimestamp == "" || s.LastTimestamp == "" {
		t.Error("summary timestamps missing")
	}
}
