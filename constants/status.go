package constants

// JobStatus is the canonical status for persisted job documents.
type JobStatus string

// Stable values (store these exact strings in the document store).
const (
	JobStatusUploaded     JobStatus = "uploaded"     // recording stored, pipeline not started
	JobStatusTranscribing JobStatus = "transcribing" // transcription submitted, awaiting results
	JobStatusTranscribed  JobStatus = "transcribed"  // transcript produced and stored
	JobStatusCompleted    JobStatus = "completed"    // analysis report produced
	JobStatusFailed       JobStatus = "failed"       // terminal failure
)

// statusRank orders the forward progression. Failed is unranked; it is
// reachable from any non-terminal status.
var statusRank = map[JobStatus]int{
	JobStatusUploaded:     0,
	JobStatusTranscribing: 1,
	JobStatusTranscribed:  2,
	JobStatusCompleted:    3,
}

// Valid reports whether s is a known status value.
func (s JobStatus) Valid() bool {
	if s == JobStatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transitions are permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from cur to next.
// Status only advances forward; failed is legal from any non-terminal
// status; terminal statuses admit no moves at all.
func CanTransition(cur, next JobStatus) bool {
	if cur.Terminal() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	cr, ok := statusRank[cur]
	if !ok {
		return false
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	return nr > cr
}
