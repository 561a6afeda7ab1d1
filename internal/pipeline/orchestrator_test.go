package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxhall/audio-insights/constants"
	"github.com/voxhall/audio-insights/internal/common"
	"github.com/voxhall/audio-insights/internal/entity"
	"github.com/voxhall/audio-insights/internal/jobs"
	"github.com/voxhall/audio-insights/internal/transcription"
)

type memJobRepo struct {
	jobs map[string]*entity.Job
}

func newMemJobRepo(js ...*entity.Job) *memJobRepo {
	r := &memJobRepo{jobs: map[string]*entity.Job{}}
	for _, j := range js {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*entity.Job, error) {
	if j, ok := r.jobs[id]; ok {
		return j.Clone(), nil
	}
	return nil, common.Errorf(common.KindNotFound, "job not found: id=%s", id)
}

func (r *memJobRepo) GetBySourceURI(_ context.Context, uri string) (*entity.Job, error) {
	for _, j := range r.jobs {
		if j.SourceURI == uri {
			return j.Clone(), nil
		}
	}
	return nil, common.Errorf(common.KindNotFound, "job not found: file_path=%s", uri)
}

func (r *memJobRepo) Upsert(_ context.Context, job *entity.Job) error {
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memJobRepo) List(_ context.Context) ([]*entity.Job, error) {
	var out []*entity.Job
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

// fakeEngine returns canned results and records calls; any stage error
// can be injected.
type fakeEngine struct {
	handle    string
	segments  []transcription.RecognizedSegment
	submitErr error
	awaitErr  error
	fetchErr  error

	submitted []string
}

func (e *fakeEngine) Submit(_ context.Context, sourceURI string) (string, error) {
	e.submitted = append(e.submitted, sourceURI)
	if e.submitErr != nil {
		return "", e.submitErr
	}
	return e.handle, nil
}

func (e *fakeEngine) AwaitCompletion(_ context.Context, _ string, _ transcription.RetryPolicy) (*transcription.StatusPayload, error) {
	if e.awaitErr != nil {
		return nil, e.awaitErr
	}
	return &transcription.StatusPayload{Status: "Succeeded"}, nil
}

func (e *fakeEngine) FetchResults(_ context.Context, _ *transcription.StatusPayload) ([]transcription.RecognizedSegment, error) {
	if e.fetchErr != nil {
		return nil, e.fetchErr
	}
	return e.segments, nil
}

type fakeAnalyzer struct {
	text        string
	err         error
	gotPrompt   string
	gotContents string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, transcript, contextPrompt string) (string, error) {
	a.gotContents = transcript
	a.gotPrompt = contextPrompt
	if a.err != nil {
		return "", a.err
	}
	return a.text, nil
}

type fakePrompts struct {
	prompts map[string]string
}

func (p *fakePrompts) GetPromptText(_ context.Context, id string) (string, error) {
	if text, ok := p.prompts[id]; ok {
		return text, nil
	}
	return "", common.Errorf(common.KindNotFound, "prompt subcategory not found: %s", id)
}

type fakeRenderer struct{ err error }

func (r *fakeRenderer) Render(title, text string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("DOCX:" + title + ":" + text), nil
}

// memStore keeps uploads in a map keyed by artifact name.
type memStore struct {
	uploads map[string][]byte
}

func newMemStore() *memStore { return &memStore{uploads: map[string][]byte{}} }

func (s *memStore) UploadText(_ context.Context, name, text string) (string, error) {
	s.uploads[name] = []byte(text)
	return "mem://" + name, nil
}

func (s *memStore) UploadReport(_ context.Context, name string, content []byte) (string, error) {
	s.uploads[name] = content
	return "mem://" + name, nil
}

func (s *memStore) URI(name string) string { return "mem://" + name }

func seedJob(repo *memJobRepo, sub string) *entity.Job {
	j := &entity.Job{
		ID:                  "J1",
		SourceURI:           "mem://meetings/call.wav",
		Status:              constants.JobStatusUploaded,
		PromptSubcategoryID: sub,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	repo.jobs[j.ID] = j
	return j
}

func testOrchestrator(repo *memJobRepo, engine *fakeEngine, analyzer *fakeAnalyzer, prompts *fakePrompts, renderer ReportRenderer, store *memStore) *Orchestrator {
	return NewOrchestrator(nil, repo, jobs.NewUpdater(repo, nil), engine,
		transcription.RetryPolicy{}, prompts, analyzer, renderer, store)
}

// TestRunHappyPath drives one recording through every stage and checks
// the terminal job document and stored artifacts.
func TestRunHappyPath(t *testing.T) {
	repo := newMemJobRepo()
	seedJob(repo, "minutes")
	engine := &fakeEngine{
		handle: "T1",
		segments: []transcription.RecognizedSegment{
			{SpeakerID: "1", Text: "Good morning.", Confidence: 0.93},
			{SpeakerID: "2", Text: "Morning.", Confidence: 0.88},
		},
	}
	analyzer := &fakeAnalyzer{text: "Summary: ok"}
	prompts := &fakePrompts{prompts: map[string]string{"minutes": "Write meeting minutes."}}
	store := newMemStore()
	orch := testOrchestrator(repo, engine, analyzer, prompts, &fakeRenderer{}, store)

	if err := orch.Run(context.Background(), Event{Path: "meetings/call.wav", TraceID: "t"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	job, _ := repo.GetByID(context.Background(), "J1")
	if job.Status != constants.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.TranscriptionHandle != "T1" {
		t.Fatalf("handle = %q", job.TranscriptionHandle)
	}
	if job.TranscriptURI != "mem://meetings/call_transcription.txt" {
		t.Fatalf("transcript uri = %q", job.TranscriptURI)
	}
	if job.ReportURI != "mem://meetings/call_analysis.docx" {
		t.Fatalf("report uri = %q", job.ReportURI)
	}
	if job.AnalysisText != "Summary: ok" {
		t.Fatalf("analysis text = %q", job.AnalysisText)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("error message = %q, want empty", job.ErrorMessage)
	}

	transcript := string(store.uploads["meetings/call_transcription.txt"])
	if !strings.Contains(transcript, "--- Speaker 1 ---") || !strings.Contains(transcript, "--- Speaker 2 ---") {
		t.Fatalf("transcript missing speaker headers:\n%s", transcript)
	}
	if analyzer.gotPrompt != "Write meeting minutes." {
		t.Fatalf("analyzer prompt = %q", analyzer.gotPrompt)
	}
	if analyzer.gotContents != transcript {
		t.Fatal("analyzer should receive the stored transcript")
	}
	if engine.submitted[0] != "mem://meetings/call.wav" {
		t.Fatalf("submitted uri = %q", engine.submitted[0])
	}
}

// TestRunStageFailureMarksJobFailed verifies a mid-pipeline error lands
// the job in failed with the error message, keeping earlier progress.
func TestRunStageFailureMarksJobFailed(t *testing.T) {
	repo := newMemJobRepo()
	seedJob(repo, "minutes")
	engine := &fakeEngine{
		handle: "T1",
		segments: []transcription.RecognizedSegment{
			{SpeakerID: "1", Text: "Hello.", Confidence: 0.9},
		},
	}
	analyzer := &fakeAnalyzer{err: common.Errorf(common.KindExternalService, "missing content in analysis response")}
	prompts := &fakePrompts{prompts: map[string]string{"minutes": "Summarize."}}
	store := newMemStore()
	orch := testOrchestrator(repo, engine, analyzer, prompts, &fakeRenderer{}, store)

	err := orch.Run(context.Background(), Event{Path: "meetings/call.wav"})
	if err == nil {
		t.Fatal("expected analysis error")
	}

	job, _ := repo.GetByID(context.Background(), "J1")
	if job.Status != constants.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "missing content in analysis response") {
		t.Fatalf("error message = %q", job.ErrorMessage)
	}
	// Progress up to the failing stage survives on the document.
	if job.TranscriptURI == "" {
		t.Fatal("transcript uri should be preserved on failure")
	}
}

// TestRunSubmitFailure checks a rejected submission fails the job
// before any transcribing state is recorded.
func TestRunSubmitFailure(t *testing.T) {
	repo := newMemJobRepo()
	seedJob(repo, "minutes")
	engine := &fakeEngine{submitErr: common.Errorf(common.KindInvalidRequest, "invalid transcription request: bad locale")}
	store := newMemStore()
	orch := testOrchestrator(repo, engine, &fakeAnalyzer{}, &fakePrompts{}, &fakeRenderer{}, store)

	if err := orch.Run(context.Background(), Event{Path: "meetings/call.wav"}); err == nil {
		t.Fatal("expected submit error")
	}

	job, _ := repo.GetByID(context.Background(), "J1")
	if job.Status != constants.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.TranscriptionHandle != "" {
		t.Fatalf("handle = %q, want unset", job.TranscriptionHandle)
	}
}

// TestRunSkipsUnsupportedExtension verifies non-audio files are ignored
// without touching the store.
func TestRunSkipsUnsupportedExtension(t *testing.T) {
	repo := newMemJobRepo()
	seedJob(repo, "minutes")
	engine := &fakeEngine{handle: "T1"}
	orch := testOrchestrator(repo, engine, &fakeAnalyzer{}, &fakePrompts{}, &fakeRenderer{}, newMemStore())

	if err := orch.Run(context.Background(), Event{Path: "meetings/notes.txt"}); err != nil {
		t.Fatalf("unsupported extension should be a silent skip: %v", err)
	}
	if len(engine.submitted) != 0 {
		t.Fatal("nothing should be submitted for unsupported files")
	}
	job, _ := repo.GetByID(context.Background(), "J1")
	if job.Status != constants.JobStatusUploaded {
		t.Fatalf("status = %s, want untouched uploaded", job.Status)
	}
}

// TestRunSkipsNonUploadedJob verifies a re-triggered job past uploaded
// is left alone without a wasted submission.
func TestRunSkipsNonUploadedJob(t *testing.T) {
	repo := newMemJobRepo()
	job := seedJob(repo, "minutes")
	job.Status = constants.JobStatusCompleted
	engine := &fakeEngine{handle: "T2"}
	orch := testOrchestrator(repo, engine, &fakeAnalyzer{}, &fakePrompts{}, &fakeRenderer{}, newMemStore())

	if err := orch.Run(context.Background(), Event{Path: "meetings/call.wav"}); err != nil {
		t.Fatalf("re-trigger of a terminal job should be a silent skip: %v", err)
	}
	if len(engine.submitted) != 0 {
		t.Fatal("nothing should be submitted for a job past uploaded")
	}
	stored, _ := repo.GetByID(context.Background(), "J1")
	if stored.Status != constants.JobStatusCompleted {
		t.Fatalf("status = %s, want untouched completed", stored.Status)
	}
}

// TestRunMissingJob covers a recording with no matching job document.
func TestRunMissingJob(t *testing.T) {
	repo := newMemJobRepo()
	orch := testOrchestrator(repo, &fakeEngine{}, &fakeAnalyzer{}, &fakePrompts{}, &fakeRenderer{}, newMemStore())

	err := orch.Run(context.Background(), Event{Path: "meetings/orphan.wav"})
	if !common.IsKind(err, common.KindNotFound) {
		t.Fatalf("error kind = %v, want not found (%v)", common.KindOf(err), err)
	}
}

// TestRunMissingPrompt verifies an unknown prompt subcategory fails the
// job after transcription progress is recorded.
func TestRunMissingPrompt(t *testing.T) {
	repo := newMemJobRepo()
	seedJob(repo, "nonexistent")
	engine := &fakeEngine{
		handle:   "T1",
		segments: []transcription.RecognizedSegment{{SpeakerID: "1", Text: "Hi.", Confidence: 0.9}},
	}
	store := newMemStore()
	orch := testOrchestrator(repo, engine, &fakeAnalyzer{}, &fakePrompts{prompts: map[string]string{}}, &fakeRenderer{}, store)

	if err := orch.Run(context.Background(), Event{Path: "meetings/call.wav"}); err == nil {
		t.Fatal("expected missing prompt error")
	}
	job, _ := repo.GetByID(context.Background(), "J1")
	if job.Status != constants.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.TranscriptURI == "" {
		t.Fatal("transcript uri should be recorded before the prompt lookup")
	}
}
