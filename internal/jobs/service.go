package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxhall/audio-insights/constants"
	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/entity"
	"github.com/voxhall/audio-insights/internal/repository"
)

// Fields carries the optional job attributes a transition may set.
// Zero values leave the stored attribute untouched.
type Fields struct {
	TranscriptionHandle string
	TranscriptURI       string
	ReportURI           string
	AnalysisText        string
	ErrorMessage        string
}

// Updater applies state transitions to persisted job records, enforcing
// the monotonic-forward status invariant. It is the only writer of job
// documents during pipeline execution.
type Updater struct {
	repo repository.JobRepository
	log  *slog.Logger
	now  func() time.Time
}

func NewUpdater(repo repository.JobRepository, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.Default()
	}
	return &Updater{repo: repo, log: log, now: time.Now}
}

// Transition moves a job to next, merging fields and stamping
// updated_at, then writes the record back. The read-modify-write is not
// protected by an optimistic concurrency token; a job is owned by at
// most one orchestrator instance at a time.
func (u *Updater) Transition(ctx context.Context, jobID string, next constants.JobStatus, f Fields) (*entity.Job, error) {
	current, err := u.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !constants.CanTransition(current.Status, next) {
		return nil, common.Errorf(common.KindIllegalTransition,
			"illegal transition %s -> %s for job %s", current.Status, next, jobID)
	}

	job := current.Clone()
	if f.TranscriptionHandle != "" {
		if job.TranscriptionHandle != "" && job.TranscriptionHandle != f.TranscriptionHandle {
			return nil, common.Errorf(common.KindIllegalTransition,
				"transcription handle is immutable once set (job %s)", jobID)
		}
		job.TranscriptionHandle = f.TranscriptionHandle
	}
	if f.TranscriptURI != "" {
		job.TranscriptURI = f.TranscriptURI
	}

	switch next {
	case constants.JobStatusCompleted:
		// report_uri and analysis_text land together with the terminal
		// transition; a completed job without either is meaningless.
		if f.ReportURI == "" || f.AnalysisText == "" {
			return nil, common.Errorf(common.KindInvalidRequest,
				"completed transition requires report location and analysis text (job %s)", jobID)
		}
		job.ReportURI = f.ReportURI
		job.AnalysisText = f.AnalysisText
	case constants.JobStatusFailed:
		msg := f.ErrorMessage
		if msg == "" {
			msg = "unknown error"
		}
		job.ErrorMessage = msg
	}

	job.Status = next
	job.UpdatedAt = u.now().UTC()

	if err := u.repo.Upsert(ctx, job); err != nil {
		u.log.Error("job transition write failed", "job_id", jobID, "status", next, "error", err)
		return nil, err
	}
	u.log.Info("job transitioned", "job_id", jobID, "from", current.Status, "to", next)
	return job, nil
}
