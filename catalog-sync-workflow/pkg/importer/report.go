package importer

import (
	"fmt"
	"time"
)

// =============================================================================
// State - Orchestrator State Machine
// =============================================================================

// State is the orchestrator's position in a run.
//
//	Idle → FetchingManifest → (ProcessingFile → Committing)* → Idle
//
// Aborted replaces Idle when the manifest could not be read or the context
// was cancelled. It holds until the next run starts.
type State int32

const (
	StateIdle State = iota
	StateFetchingManifest
	StateProcessingFile
	StateCommitting
	StateAborted
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateFetchingManifest: "fetching_manifest",
	StateProcessingFile:   "processing_file",
	StateCommitting:       "committing",
	StateAborted:          "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// =============================================================================
// Reports
// =============================================================================

// Outcome is what happened to one manifest entry.
type Outcome string

const (
	// OutcomeCommitted means a ledger row and the records were written
	OutcomeCommitted Outcome = "committed"

	// OutcomeEmpty means no records were found past the cursor; nothing was written
	OutcomeEmpty Outcome = "empty"

	// OutcomeIneligible means the name failed the length rule
	OutcomeIneligible Outcome = "ineligible"

	// OutcomeFailed means the file could not be fetched or decoded
	OutcomeFailed Outcome = "failed"

	// OutcomeStoreError means a store call failed; the cursor did not move
	// unless Err says the catalog write was the one that failed
	OutcomeStoreError Outcome = "store_error"

	// OutcomeCancelled means the run context ended before the commit
	OutcomeCancelled Outcome = "cancelled"
)

// FileReport describes the processing of one manifest entry.
type FileReport struct {
	Source       string        `json:"source"`
	Outcome      Outcome       `json:"outcome"`
	ResumeOffset int64         `json:"resume_offset"`
	Offset       int64         `json:"offset"`
	Records      int           `json:"records"`
	Malformed    int           `json:"malformed"`
	Anomalies    int           `json:"ordering_anomalies,omitempty"`
	CapReached   bool          `json:"cap_reached"`
	Truncated    bool          `json:"truncated,omitempty"`
	Duration     time.Duration `json:"duration"`
	Err          string        `json:"error,omitempty"`
}

// RunReport summarizes one ImportData call.
type RunReport struct {
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	State    State        `json:"state"`
	Manifest int          `json:"manifest_entries"`
	Files    []FileReport `json:"files"`
	Records  int          `json:"records"`
	Err      string       `json:"error,omitempty"`
}

// Count returns how many files ended with outcome o.
func (r RunReport) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}
