package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxhall/audio-insights/internal/common"
)

const apiPath = "/speechtotext/v3.2"

// Engine submits batch transcriptions to the speech service, polls them
// to completion, and fetches diarized results.
type Engine struct {
	cfg    common.SpeechConfig
	client *http.Client
	log    *slog.Logger

	// injectable for tests; real clock and sleep in production
	sleep func(time.Duration)
	now   func() time.Time
}

func NewEngine(cfg common.SpeechConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// NewEngineForTests wires an engine with an injected HTTP client, sleep
// function, and clock.
func NewEngineForTests(cfg common.SpeechConfig, client *http.Client, sleep func(time.Duration), now func() time.Time) *Engine {
	e := NewEngine(cfg, slog.Default())
	if client != nil {
		e.client = client
	}
	if sleep != nil {
		e.sleep = sleep
	}
	if now != nil {
		e.now = now
	}
	return e
}

// Submit sends a diarized batch-transcription request for sourceURI and
// returns the opaque transcription handle. A client-error response is a
// non-retryable InvalidRequest carrying the service's message; any
// other non-success response is an ExternalService error.
func (e *Engine) Submit(ctx context.Context, sourceURI string) (string, error) {
	rid := uuid.New().String()
	body := submitRequest{
		ContentUrls: []string{sourceURI},
		Locale:      e.cfg.Locale,
		DisplayName: "Transcription_" + e.now().UTC().Format("20060102_150405"),
		Properties: submitProperties{
			DiarizationEnabled: true,
			Speakers: speakerBounds{
				MinCount: 1,
				MaxCount: e.cfg.MaxSpeakers,
			},
			LanguageIdentification: languageIdentification{
				CandidateLocales: e.cfg.CandidateLocales,
			},
			ProfanityFilterMode: "None",
		},
	}

	e.log.Info("transcription.submit", "req_id", rid, "source_uri", sourceURI,
		"locale", e.cfg.Locale, "max_speakers", e.cfg.MaxSpeakers)

	raw, status, err := e.do(ctx, http.MethodPost, e.endpoint("/transcriptions"), body, true)
	if err != nil {
		e.log.Error("transcription.submit.send_error", "req_id", rid, "error", err)
		return "", common.NewAppError(common.KindExternalService, "submit transcription", err)
	}
	if status >= 400 && status < 500 {
		var resp submitResponse
		_ = json.Unmarshal(raw, &resp)
		if resp.Message == "" {
			resp.Message = strings.TrimSpace(string(raw))
		}
		e.log.Error("transcription.submit.rejected", "req_id", rid, "status", status, "message", resp.Message)
		return "", common.Errorf(common.KindInvalidRequest, "invalid transcription request: %s", resp.Message)
	}
	if status < 200 || status >= 300 {
		e.log.Error("transcription.submit.failed", "req_id", rid, "status", status)
		return "", common.Errorf(common.KindExternalService, "transcription submit returned status %d", status)
	}

	var resp submitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", common.NewAppError(common.KindExternalService, "decode submit response", err)
	}
	if resp.Self == "" {
		return "", common.Errorf(common.KindExternalService, "submit response missing self link")
	}
	parts := strings.Split(strings.TrimRight(resp.Self, "/"), "/")
	handle := parts[len(parts)-1]

	e.log.Info("transcription.submit.ok", "req_id", rid, "handle", handle)
	return handle, nil
}

// getStatus performs one status poll. Transport failures and non-2xx
// responses come back as TransientNetwork so the poll loop retries
// them; an undecodable body is fatal.
func (e *Engine) getStatus(ctx context.Context, handle string) (*StatusPayload, error) {
	raw, status, err := e.do(ctx, http.MethodGet, e.endpoint("/transcriptions/"+handle), nil, true)
	if err != nil {
		return nil, common.NewAppError(common.KindTransientNetwork, "poll transcription status", err)
	}
	if status < 200 || status >= 300 {
		return nil, common.Errorf(common.KindTransientNetwork, "status poll returned status %d", status)
	}
	var payload StatusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, common.NewAppError(common.KindExternalService, "decode status payload", err)
	}
	return &payload, nil
}

// FetchResults resolves the file-listing link of a succeeded
// transcription and converts its recognized phrases into segments.
func (e *Engine) FetchResults(ctx context.Context, payload *StatusPayload) ([]RecognizedSegment, error) {
	filesURL := payload.Links.Files
	if filesURL == "" {
		return nil, common.Errorf(common.KindExternalService, "files link missing from status payload")
	}

	raw, status, err := e.do(ctx, http.MethodGet, filesURL, nil, true)
	if err != nil {
		return nil, common.NewAppError(common.KindExternalService, "fetch result file list", err)
	}
	if status < 200 || status >= 300 {
		return nil, common.Errorf(common.KindExternalService, "result file list returned status %d", status)
	}
	var files filesPayload
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, common.NewAppError(common.KindExternalService, "decode result file list", err)
	}
	if len(files.Values) == 0 {
		return nil, common.Errorf(common.KindExternalService, "no transcription result files")
	}
	contentURL := files.Values[0].Links.ContentURL
	if contentURL == "" {
		return nil, common.Errorf(common.KindExternalService, "result file missing content link")
	}

	// Content URLs are pre-signed; no auth header.
	raw, status, err = e.do(ctx, http.MethodGet, contentURL, nil, false)
	if err != nil {
		return nil, common.NewAppError(common.KindExternalService, "fetch transcription content", err)
	}
	if status < 200 || status >= 300 {
		return nil, common.Errorf(common.KindExternalService, "transcription content returned status %d", status)
	}
	var result resultPayload
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, common.NewAppError(common.KindExternalService, "decode transcription content", err)
	}

	segments := make([]RecognizedSegment, 0, len(result.RecognizedPhrases))
	for _, phrase := range result.RecognizedPhrases {
		if len(phrase.NBest) == 0 {
			continue
		}
		best := phrase.NBest[0]
		segments = append(segments, RecognizedSegment{
			SpeakerID:  speakerID(phrase.Speaker),
			Text:       best.Display,
			Confidence: best.Confidence,
		})
	}
	e.log.Info("transcription.results.ok", "phrases", len(result.RecognizedPhrases), "segments", len(segments))
	return segments, nil
}

func (e *Engine) endpoint(path string) string {
	return strings.TrimRight(e.cfg.Endpoint, "/") + apiPath + path
}

// do issues one HTTP request and returns the body and status code. The
// returned error covers transport problems only; callers interpret
// status codes themselves.
func (e *Engine) do(ctx context.Context, method, url string, body any, auth bool) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Ocp-Apim-Subscription-Key", e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func speakerID(n int) string {
	// Diarization numbers speakers from 1; 0 means unattributed.
	if n == 0 {
		return "Unknown"
	}
	return strconv.Itoa(n)
}
