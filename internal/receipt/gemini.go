package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/domain"
)

const extractionPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (as a number)
- Date (in YYYY-MM-DD format)
- A brief description or list of items
- Suggested category (e.g., groceries, food, utilities, etc.)

Respond only with valid JSON:
{
  "kind": "expense" or "income",
  "amount": 12.34,
  "category": "groceries",
  "description": "Weekly shopping",
  "date": "2023-10-27"
}`

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
	Logger   *logrus.Logger
}

// GeminiExtractor submits receipt images to the Gemini generateContent API
// and converts the free-form reply into a validated draft.
type GeminiExtractor struct {
	apiKey   string
	model    string
	endpoint string
	httpc    *http.Client
	logger   *logrus.Logger
}

func NewGeminiExtractor(cfg GeminiConfig) *GeminiExtractor {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &GeminiExtractor{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*domain.ReceiptDraft, error) {
	if len(image) == 0 || strings.TrimSpace(mimeType) == "" {
		return nil, ErrMissingImage
	}

	text, err := g.generate(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}

	draft, err := parseDraft(text)
	if err != nil {
		// raw model output stays in the logs, never in the response
		g.logger.WithError(err).Debugf("unusable model reply: %s", text)
		return nil, err
	}
	return draft, nil
}

func (g *GeminiExtractor) generate(ctx context.Context, image []byte, mimeType string) (string, error) {
	reqBody := generateContentRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: extractionPrompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal model request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		g.logger.Debugf("model returned status %d: %s", resp.StatusCode, body)
		return "", fmt.Errorf("model request failed with status %d", resp.StatusCode)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

var _ Extractor = (*GeminiExtractor)(nil)
