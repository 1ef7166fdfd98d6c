package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/prompt"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Client implements audit.Analyzer on top of the official genai SDK.
type Client struct {
	cli       *genai.Client
	model     string
	maxTokens int32
	// Now supplies "today" for the prompt; defaults to time.Now.
	Now func() time.Time
}

func NewClient(ctx context.Context, apiKey, model string, maxTokens int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if model == "" {
		model = prompt.DefaultGeminiModel
	}
	return &Client{cli: cli, model: model, maxTokens: int32(maxTokens), Now: time.Now}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

// Generate sends instructions and both reports as a single multi-part content
// and asks for JSON constrained by the result schema.
func (c *Client) Generate(ctx context.Context, old, current audit.ReportInput) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(),
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model, Contents(prompt.Segments(old, current, c.Now())), cfg)
	if err != nil {
		if isQuota(err) {
			return "", fmt.Errorf("%w: %v", audit.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return responseText(resp)
}

// Contents maps prompt segments to genai parts. Files travel as inline data.
func Contents(segs []prompt.Segment) []*genai.Content {
	parts := make([]*genai.Part, 0, len(segs))
	for _, s := range segs {
		if s.Report != nil {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{
				MIMEType: s.Report.MIMEType,
				Data:     s.Report.Data,
			}})
			continue
		}
		parts = append(parts, &genai.Part{Text: s.Text})
	}
	return []*genai.Content{{Parts: parts}}
}

// ResponseSchema mirrors audit.AnalysisResult.
func ResponseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":              str(prompt.DescSummary),
			"totalProductsChecked": {Type: genai.TypeNumber, Description: prompt.DescTotalProductsChecked},
			"inconsistenciesFound": {Type: genai.TypeNumber, Description: prompt.DescInconsistenciesFound},
			"details": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"productName":  {Type: genai.TypeString},
						"issueType":    str(prompt.DescIssueType),
						"report1Value": str(prompt.DescReport1Value),
						"report1Date":  str(prompt.DescReport1Date),
						"report2Value": str(prompt.DescReport2Value),
						"report2Date":  str(prompt.DescReport2Date),
						"description":  str(prompt.DescDescription),
						"severity":     {Type: genai.TypeString, Enum: prompt.SeverityEnum},
					},
					Required: prompt.DetailRequired,
				},
			},
		},
		Required: prompt.ResultRequired,
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func isQuota(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
