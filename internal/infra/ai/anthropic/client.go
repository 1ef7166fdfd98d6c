package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/prompt"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 8192
)

// JSONOnly is appended to the instructions; messages have no response schema
// so the shape is spelled out.
const JSONOnly = `

Responda SOMENTE com um objeto JSON válido, sem markdown, no formato:
{"summary": string, "totalProductsChecked": integer, "inconsistenciesFound": integer,
 "details": [{"productName": string, "issueType": string, "report1Value": string,
 "report1Date": string, "report2Value": string, "report2Date": string,
 "description": string, "severity": "low"|"medium"|"high"}]}`

var (
	// ErrEmptyResponse is returned when the reply has no text block.
	ErrEmptyResponse = errors.New("anthropic: empty response")
	// ErrUnsupportedInput: only text, images and PDFs can be attached.
	ErrUnsupportedInput = errors.New("anthropic: unsupported report type")
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Client struct {
	cli       anthropic.Client
	Model     string
	MaxTokens int64
	Now       func() time.Time
}

func NewClient(apiKey, model string, maxTokens int) *Client {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		cli:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		Model:     model,
		MaxTokens: int64(maxTokens),
		Now:       time.Now,
	}
}

func (c *Client) Name() string { return "anthropic:" + c.Model }

func (c *Client) Generate(ctx context.Context, old, current audit.ReportInput) (string, error) {
	params, err := c.Params(old, current)
	if err != nil {
		return "", err
	}
	msg, err := c.cli.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", audit.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Params builds one user message carrying every segment in order; the
// instructions go to the system prompt.
func (c *Client) Params(old, current audit.ReportInput) (anthropic.MessageNewParams, error) {
	segs := prompt.Segments(old, current, c.Now())
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(segs)-1)
	for _, s := range segs[1:] {
		b, err := block(s)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		blocks = append(blocks, b)
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: c.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: segs[0].Text + JSONOnly},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}, nil
}

func block(s prompt.Segment) (anthropic.ContentBlockParamUnion, error) {
	if s.Report == nil {
		return anthropic.NewTextBlock(s.Text), nil
	}
	in := s.Report
	switch {
	case in.IsTextual():
		return anthropic.NewTextBlock(string(in.Data)), nil
	case imageTypes[in.MIMEType]:
		return anthropic.NewImageBlockBase64(in.MIMEType, in.Base64()), nil
	case in.MIMEType == "application/pdf":
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: in.Base64()}), nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: %s", ErrUnsupportedInput, in.MIMEType)
}
