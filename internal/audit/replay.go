package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ReplayFilter selects audit entries. Zero-valued fields match everything,
// so an empty filter replays the whole log.
type ReplayFilter struct {
	RequestID string
	ActionID  string
	From      time.Time
	To        time.Time
}

// ReplaySummary holds decision counts and metadata for a replayed range.
type ReplaySummary struct {
	Total          int    `json:"total"`
	ExecutedCount  int    `json:"executed_count"`
	ConfirmCount   int    `json:"confirm_count"`
	RejectedCount  int    `json:"rejected_count"`
	DeclinedCount  int    `json:"declined_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// ReplayResult holds the filtered entries and their summary.
type ReplayResult struct {
	Entries []Entry       `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter, in
// log order. Malformed lines are skipped; replay is a read-only diagnostic,
// tamper detection belongs to Verify.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if filter.RequestID != "" && entry.RequestID != filter.RequestID {
			continue
		}
		if filter.ActionID != "" && entry.ActionID != filter.ActionID {
			continue
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch entry.Decision {
	case "auto_execute", "confirmed_execute":
		s.ExecutedCount++
	case "confirm":
		s.ConfirmCount++
	case "reject":
		s.RejectedCount++
	case "declined":
		s.DeclinedCount++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
