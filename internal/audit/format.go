package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "------------------------------------------------------------------"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder

	first := formatDateRange(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("Audit timeline | %s - %s UTC\n", first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		decision := strings.ToUpper(e.Decision)
		action := truncate(e.ActionID, 18)
		transcript := truncate(e.Transcript, 32)

		tag := ""
		if e.Execution.Executed {
			tag = fmt.Sprintf("  [exit %d]", e.Execution.ExitCode)
		}

		b.WriteString(fmt.Sprintf("%-10s %-18s %-18s %5.2f  %-32s%s\n",
			ts, decision, action, e.Confidence, transcript, tag))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.ExecutedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d executed", s.ExecutedCount))
	}
	if s.ConfirmCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", s.ConfirmCount))
	}
	if s.DeclinedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d declined", s.DeclinedCount))
	}
	if s.RejectedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.RejectedCount))
	}
	if len(parts) == 0 {
		parts = append(parts, "no decisions")
	}
	return fmt.Sprintf("Summary: %s of %d entries\n", strings.Join(parts, ", "), s.Total)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
