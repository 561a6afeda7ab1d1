package entity

import (
	"time"

	"github.com/voxhall/audio-insights/constants"
)

// Job is the persisted unit of work tracking one recording's progress
// through the pipeline. JSON field names follow the document-store
// schema; the upload surface that creates these documents uses the
// same names.
type Job struct {
	ID                  string              `json:"id"`
	SourceURI           string              `json:"file_path"`
	Status              constants.JobStatus `json:"status"`
	TranscriptionHandle string              `json:"transcription_id,omitempty"`
	TranscriptURI       string              `json:"transcription_file_path,omitempty"`
	ReportURI           string              `json:"analysis_file_path,omitempty"`
	AnalysisText        string              `json:"analysis_text,omitempty"`
	PromptCategoryID    string              `json:"prompt_category_id,omitempty"`
	PromptSubcategoryID string              `json:"prompt_subcategory_id,omitempty"`
	ErrorMessage        string              `json:"error_message,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Clone returns a copy of j so callers can mutate transition fields
// without aliasing the repository's view.
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}
