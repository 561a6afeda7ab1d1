package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxhall/audio-insights/internal/common"
)

// systemPrompt fixes the assistant role for every analysis request; the
// per-job instructions travel in the user message.
const systemPrompt = "You are an assistant that analyzes diarized conversation transcripts. " +
	"Follow the analysis instructions provided by the user and base every statement on the transcript content."

// Invoker sends one formatted transcript plus a context prompt to the
// text-analysis service and extracts the resulting text. No retries:
// the orchestrator decides whether a failure fails the job.
type Invoker struct {
	cfg    common.AnalysisConfig
	client *http.Client
	log    *slog.Logger
}

func NewInvoker(cfg common.AnalysisConfig, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Invoker{cfg: cfg, client: &http.Client{Timeout: timeout}, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze issues a single chat-completion request and returns the first
// choice's message content.
func (iv *Invoker) Analyze(ctx context.Context, transcript, contextPrompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	body := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: contextPrompt + "\n\n" + transcript},
		},
		Temperature: iv.cfg.Temperature,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", common.NewAppError(common.KindExternalService, "encode analysis request", err)
	}

	url := strings.TrimRight(iv.cfg.Endpoint, "/") +
		"/openai/deployments/" + iv.cfg.Deployment +
		"/chat/completions?api-version=" + iv.cfg.APIVersion

	iv.log.Info("analysis.request", "req_id", rid,
		"deployment", iv.cfg.Deployment, "transcript_bytes", len(transcript))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", common.NewAppError(common.KindExternalService, "build analysis request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", iv.cfg.APIKey)

	resp, err := iv.client.Do(req)
	if err != nil {
		iv.log.Error("analysis.send_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.NewAppError(common.KindExternalService, "send analysis request", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		iv.log.Error("analysis.status_error", "req_id", rid, "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", common.Errorf(common.KindExternalService,
			"analysis service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.NewAppError(common.KindExternalService, "decode analysis response", err)
	}
	if len(cc.Choices) == 0 || strings.TrimSpace(cc.Choices[0].Message.Content) == "" {
		iv.log.Error("analysis.no_content", "req_id", rid, "raw_bytes", len(raw))
		return "", common.Errorf(common.KindExternalService, "missing content in analysis response")
	}

	content := cc.Choices[0].Message.Content
	iv.log.Info("analysis.ok", "req_id", rid, "result_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}
