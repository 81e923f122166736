package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/claimrag/internal/config"
	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// Default LLM summarizer configuration.
const (
	DefaultSummaryModel   = "llama3.2"
	DefaultSummaryHost    = "http://localhost:11434"
	DefaultSummaryTimeout = 60 * time.Second

	// maxPromptInput caps the text placed into a single prompt.
	maxPromptInput = 6000
)

// Summarizer turns a prompt into summary text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
	Name() string
	Available(ctx context.Context) bool
	Close() error
}

// Truncation lengths used when summarization fails, in characters.
const (
	ChunkFallbackLen    = 200
	SectionFallbackLen  = 500
	DocumentFallbackLen = 1000
)

const chunkPromptTemplate = `Summarize the following text chunk from an insurance claim document.
Focus on key facts, dates, amounts, and events.

Text chunk:
%s

Summary:`

const sectionPromptTemplate = `Create a comprehensive summary for the following section of an insurance claim document.
Combine the individual chunk summaries into a coherent section overview.
Include a timeline of events, key entities, and important details.

Section: %s

Chunk summaries:
%s

Section summary:`

const documentPromptTemplate = `Create a comprehensive document-level summary for this insurance claim.
Combine all section summaries into a high-level overview.

Claim ID: %s
Time Period: %s to %s

Section summaries:
%s

Document summary (include overall timeline, major events, key entities, total costs, and claim status):`

func chunkPrompt(text string) string {
	return fmt.Sprintf(chunkPromptTemplate, truncateContent(text, maxPromptInput))
}

func sectionPrompt(header, summaries string) string {
	return fmt.Sprintf(sectionPromptTemplate, header, truncateContent(summaries, maxPromptInput))
}

func documentPrompt(claimID, first, last, summaries string) string {
	if claimID == "" {
		claimID = "Unknown"
	}
	return fmt.Sprintf(documentPromptTemplate, claimID, first, last, truncateContent(summaries, maxPromptInput))
}

// truncateWithEllipsis cuts s to n bytes on a rune boundary and appends
// "..." when anything was removed.
func truncateWithEllipsis(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func truncateContent(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return truncateWithEllipsis(content, maxLen) + " [truncated]"
}

// TruncatingSummarizer never calls a model. It returns the input block of
// the prompt cut to the fallback length for that prompt's level, which
// keeps the summary index usable without an LLM.
type TruncatingSummarizer struct{}

var _ Summarizer = (*TruncatingSummarizer)(nil)

func NewTruncatingSummarizer() *TruncatingSummarizer {
	return &TruncatingSummarizer{}
}

func (t *TruncatingSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, limit := promptBody(prompt)
	return truncateWithEllipsis(body, limit), nil
}

// promptBlockLimits maps the label that opens a prompt's input block to
// the truncation length for that level.
var promptBlockLimits = map[string]int{
	"Text chunk:":        ChunkFallbackLen,
	"Chunk summaries:":   SectionFallbackLen,
	"Section summaries:": DocumentFallbackLen,
}

// promptBody extracts the input block of a summary prompt, which runs from
// its label to the trailing answer label.
func promptBody(prompt string) (string, int) {
	lines := strings.Split(prompt, "\n")
	start, end, limit := 0, len(lines), ChunkFallbackLen
	for i, line := range lines {
		if n, ok := promptBlockLimits[line]; ok {
			start, limit = i+1, n
			break
		}
	}
	if start > 0 {
		for i := len(lines) - 1; i >= start; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				end = i
				break
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n")), limit
}

func (t *TruncatingSummarizer) Name() string { return "truncate" }

func (t *TruncatingSummarizer) Available(context.Context) bool { return true }

func (t *TruncatingSummarizer) Close() error { return nil }

// OllamaSummarizerConfig configures OllamaSummarizer.
type OllamaSummarizerConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
	// MaxFailures consecutive errors open the circuit; ResetTimeout later a
	// single probe request is allowed.
	MaxFailures  int
	ResetTimeout time.Duration
}

// OllamaSummarizer generates summaries with Ollama's /api/generate. Calls
// pass through a circuit breaker so an unhealthy server fails fast instead
// of timing out once per chunk.
type OllamaSummarizer struct {
	client  *http.Client
	config  OllamaSummarizerConfig
	breaker *ragerrors.CircuitBreaker
}

var _ Summarizer = (*OllamaSummarizer)(nil)

// llmGenerateRequest is the Ollama /api/generate request body.
type llmGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type llmGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaSummarizer(cfg OllamaSummarizerConfig) *OllamaSummarizer {
	if cfg.Host == "" {
		cfg.Host = DefaultSummaryHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultSummaryModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSummaryTimeout
	}

	var opts []ragerrors.CircuitBreakerOption
	if cfg.MaxFailures > 0 {
		opts = append(opts, ragerrors.WithMaxFailures(cfg.MaxFailures))
	}
	if cfg.ResetTimeout > 0 {
		opts = append(opts, ragerrors.WithResetTimeout(cfg.ResetTimeout))
	}

	return &OllamaSummarizer{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		breaker: ragerrors.NewCircuitBreaker("ollama-summarizer", opts...),
	}
}

// Summarize returns the trimmed model response.
func (o *OllamaSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	text, err := ragerrors.CircuitExecute(o.breaker, func() (string, error) {
		return o.generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, ragerrors.ErrCircuitOpen) {
			return "", ragerrors.New(ragerrors.ErrCodeSummaryFailed, "summarizer circuit is open", err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimPrefix(text, "Summary:"))
	if text == "" {
		return "", ragerrors.New(ragerrors.ErrCodeSummaryFailed, "model returned an empty summary", nil)
	}
	return text, nil
}

func (o *OllamaSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(llmGenerateRequest{
		Model:  o.config.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", ragerrors.NetworkError("summary request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", ragerrors.New(ragerrors.ErrCodeSummaryFailed,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var out llmGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}

// Available checks that Ollama answers within two seconds.
func (o *OllamaSummarizer) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		slog.Debug("summarizer_unavailable", slog.String("host", o.config.Host), slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (o *OllamaSummarizer) Name() string { return "ollama:" + o.config.Model }

// BreakerState exposes the circuit state for diagnostics.
func (o *OllamaSummarizer) BreakerState() ragerrors.State { return o.breaker.State() }

func (o *OllamaSummarizer) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// NewSummarizer builds the summarizer selected by cfg. An Ollama server
// that does not answer is replaced by truncation with a warning.
func NewSummarizer(ctx context.Context, cfg config.SummaryConfig) Summarizer {
	if strings.EqualFold(cfg.Provider, "truncate") {
		return NewTruncatingSummarizer()
	}
	o := NewOllamaSummarizer(OllamaSummarizerConfig{
		Host:    cfg.OllamaHost,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if !o.Available(ctx) {
		slog.Warn("summarizer_fallback",
			slog.String("host", o.config.Host),
			slog.String("using", "truncate"))
		_ = o.Close()
		return NewTruncatingSummarizer()
	}
	return o
}
