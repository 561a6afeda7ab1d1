package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/voxhall/audio-insights/constants"
	"github.com/voxhall/audio-insights/internal/entity"
	"github.com/voxhall/audio-insights/internal/jobs"
	"github.com/voxhall/audio-insights/internal/storage"
	"github.com/voxhall/audio-insights/internal/transcription"
)

// Event is one triggering notification for an uploaded recording. Path
// is relative to the recordings root.
type Event struct {
	Path    string
	TraceID string
}

// TranscriptionEngine is the submission-and-polling surface the
// orchestrator drives.
type TranscriptionEngine interface {
	Submit(ctx context.Context, sourceURI string) (string, error)
	AwaitCompletion(ctx context.Context, handle string, policy transcription.RetryPolicy) (*transcription.StatusPayload, error)
	FetchResults(ctx context.Context, payload *transcription.StatusPayload) ([]transcription.RecognizedSegment, error)
}

// Analyzer turns a formatted transcript plus a context prompt into
// analysis text.
type Analyzer interface {
	Analyze(ctx context.Context, transcript, contextPrompt string) (string, error)
}

// PromptStore resolves the prompt text for a job's subcategory.
type PromptStore interface {
	GetPromptText(ctx context.Context, subcategoryID string) (string, error)
}

// JobFinder looks a job up by the recording location that produced it.
type JobFinder interface {
	GetBySourceURI(ctx context.Context, sourceURI string) (*entity.Job, error)
}

// StateUpdater applies persisted job transitions.
type StateUpdater interface {
	Transition(ctx context.Context, jobID string, next constants.JobStatus, f jobs.Fields) (*entity.Job, error)
}

// ReportRenderer converts analysis text to a document byte stream.
type ReportRenderer interface {
	Render(title, text string) ([]byte, error)
}

// Orchestrator runs the whole pipeline for a single triggering event:
// submit, poll, format, analyze, render, with a persisted state
// transition after each completed stage. Instances for distinct jobs
// run independently; one instance handles one event start to finish.
type Orchestrator struct {
	log      *slog.Logger
	finder   JobFinder
	updater  StateUpdater
	engine   TranscriptionEngine
	policy   transcription.RetryPolicy
	prompts  PromptStore
	analyzer Analyzer
	renderer ReportRenderer
	store    storage.ArtifactStore
}

func NewOrchestrator(
	log *slog.Logger,
	finder JobFinder,
	updater StateUpdater,
	engine TranscriptionEngine,
	policy transcription.RetryPolicy,
	prompts PromptStore,
	analyzer Analyzer,
	renderer ReportRenderer,
	store storage.ArtifactStore,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		log:      log,
		finder:   finder,
		updater:  updater,
		engine:   engine,
		policy:   policy,
		prompts:  prompts,
		analyzer: analyzer,
		renderer: renderer,
		store:    store,
	}
}

// Run processes one triggering event. Unsupported media types are
// skipped silently; a missing job record is fatal. Any stage failure
// after the job is resolved transitions it to failed with the error's
// message, and the error is returned for the host to log and alert on.
// A failure never affects other jobs.
func (o *Orchestrator) Run(ctx context.Context, ev Event) (err error) {
	log := o.log.With("path", ev.Path, "trace_id", ev.TraceID)

	if !constants.IsSupportedAudio(ev.Path) {
		log.Info("pipeline.skip.unsupported", "ext", filepath.Ext(ev.Path))
		return nil
	}

	sourceURI := o.store.URI(ev.Path)
	job, err := o.finder.GetBySourceURI(ctx, sourceURI)
	if err != nil {
		log.Error("pipeline.job.missing", "source_uri", sourceURI, "error", err)
		return err
	}
	log = log.With("job_id", job.ID)

	// A re-triggered job that already left uploaded would pay for a
	// fresh submission only to have the transcribing transition
	// rejected; skip it before touching the speech service.
	if job.Status != constants.JobStatusUploaded {
		log.Info("pipeline.skip.status", "status", job.Status)
		return nil
	}

	defer func() {
		if err == nil {
			return
		}
		if _, terr := o.updater.Transition(ctx, job.ID, constants.JobStatusFailed,
			jobs.Fields{ErrorMessage: err.Error()}); terr != nil {
			log.Error("pipeline.fail_transition_error", "error", terr)
		}
	}()

	// Stage 1: submit transcription.
	handle, err := o.engine.Submit(ctx, sourceURI)
	if err != nil {
		return err
	}
	if _, err = o.updater.Transition(ctx, job.ID, constants.JobStatusTranscribing,
		jobs.Fields{TranscriptionHandle: handle}); err != nil {
		return err
	}
	log.Info("pipeline.transcribing", "handle", handle)

	// Stage 2: await results, format, store the transcript.
	payload, err := o.engine.AwaitCompletion(ctx, handle, o.policy)
	if err != nil {
		return err
	}
	segments, err := o.engine.FetchResults(ctx, payload)
	if err != nil {
		return err
	}
	transcript := transcription.Format(segments)

	base := strings.TrimSuffix(ev.Path, filepath.Ext(ev.Path))
	transcriptURI, err := o.store.UploadText(ctx, base+"_transcription.txt", transcript)
	if err != nil {
		return err
	}
	if _, err = o.updater.Transition(ctx, job.ID, constants.JobStatusTranscribed,
		jobs.Fields{TranscriptURI: transcriptURI}); err != nil {
		return err
	}
	log.Info("pipeline.transcribed", "transcript_uri", transcriptURI, "segments", len(segments))

	// Stage 3: analysis with the subcategory's prompt.
	prompt, err := o.prompts.GetPromptText(ctx, job.PromptSubcategoryID)
	if err != nil {
		log.Error("pipeline.prompt.missing", "subcategory_id", job.PromptSubcategoryID, "error", err)
		return err
	}
	analysisText, err := o.analyzer.Analyze(ctx, transcript, prompt)
	if err != nil {
		return err
	}

	// Stage 4: render and store the report, complete the job.
	content, err := o.renderer.Render(filepath.Base(base), analysisText)
	if err != nil {
		return err
	}
	reportURI, err := o.store.UploadReport(ctx, base+"_analysis.docx", content)
	if err != nil {
		return err
	}
	if _, err = o.updater.Transition(ctx, job.ID, constants.JobStatusCompleted,
		jobs.Fields{ReportURI: reportURI, AnalysisText: analysisText}); err != nil {
		return err
	}
	log.Info("pipeline.completed", "report_uri", reportURI)
	return nil
}
