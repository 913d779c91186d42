package audit

// Execution is the flattened execution outcome recorded in each entry.
// Populated only when the pipeline actually spawned a command.
type Execution struct {
	Executed bool `json:"executed"`
	ExitCode int  `json:"exit_code"`
}

// Entry is one line in the hash-chained JSONL audit log: everything needed
// to reconstruct why a command was or was not run. All fields are structs
// and scalars (no map[string]any) to guarantee deterministic json.Marshal
// field order for reproducible hashing.
type Entry struct {
	Timestamp    string    `json:"ts"`
	RequestID    string    `json:"request_id"`
	Transcript   string    `json:"transcript"`
	ActionID     string    `json:"action_id"`
	Confidence   float64   `json:"confidence"`
	SpeakerScore *float64  `json:"speaker_score,omitempty"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	Execution    Execution `json:"execution"`
	RegistryHash string    `json:"registry_hash,omitempty"`
	PrevHash     string    `json:"prev_hash"`
}
