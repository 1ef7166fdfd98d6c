package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/prompt"
)

const defaultMaxTokens = 8192

// ErrUnsupportedInput: chat completions only take text and images.
var ErrUnsupportedInput = errors.New("openai: unsupported report type")

type Client struct {
	*openai.Client
	Model     string
	MaxTokens int
	Now       func() time.Time
}

func NewClient(apiKey, model string, maxTokens int) *Client {
	if model == "" {
		model = prompt.DefaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{Client: openai.NewClient(apiKey), Model: model, MaxTokens: maxTokens, Now: time.Now}
}

func (c *Client) Name() string { return "openai:" + c.Model }

func (c *Client) Generate(ctx context.Context, old, current audit.ReportInput) (string, error) {
	req, err := c.Request(old, current)
	if err != nil {
		return "", err
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", audit.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Request builds the chat completion: instructions as the system message,
// the rest of the segments as one multi-part user message.
func (c *Client) Request(old, current audit.ReportInput) (openai.ChatCompletionRequest, error) {
	segs := prompt.Segments(old, current, c.Now())
	var parts []openai.ChatMessagePart
	for _, s := range segs[1:] {
		p, err := part(s)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		parts = append(parts, p)
	}

	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   prompt.SchemaName,
				Schema: ResponseSchema(),
				Strict: true,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: segs[0].Text},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoning(c.Model) {
		req.MaxCompletionTokens = c.MaxTokens
	} else {
		req.MaxTokens = c.MaxTokens
	}
	return req, nil
}

func part(s prompt.Segment) (openai.ChatMessagePart, error) {
	if s.Report == nil {
		return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: s.Text}, nil
	}
	in := s.Report
	switch {
	case in.IsTextual():
		return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: string(in.Data)}, nil
	case strings.HasPrefix(in.MIMEType, "image/"):
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + in.MIMEType + ";base64," + in.Base64(),
				Detail: openai.ImageURLDetailHigh,
			},
		}, nil
	}
	return openai.ChatMessagePart{}, fmt.Errorf("%w: %s", ErrUnsupportedInput, in.MIMEType)
}

// ResponseSchema is the strict JSON schema for audit.AnalysisResult.
func ResponseSchema() *jsonschema.Definition {
	str := func(desc string) jsonschema.Definition {
		return jsonschema.Definition{Type: jsonschema.String, Description: desc}
	}
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"summary":              str(prompt.DescSummary),
			"totalProductsChecked": {Type: jsonschema.Integer, Description: prompt.DescTotalProductsChecked},
			"inconsistenciesFound": {Type: jsonschema.Integer, Description: prompt.DescInconsistenciesFound},
			"details": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"productName":  {Type: jsonschema.String},
						"issueType":    str(prompt.DescIssueType),
						"report1Value": str(prompt.DescReport1Value),
						"report1Date":  str(prompt.DescReport1Date),
						"report2Value": str(prompt.DescReport2Value),
						"report2Date":  str(prompt.DescReport2Date),
						"description":  str(prompt.DescDescription),
						"severity":     {Type: jsonschema.String, Enum: prompt.SeverityEnum},
					},
					Required:             prompt.DetailRequired,
					AdditionalProperties: false,
				},
			},
		},
		Required:             prompt.ResultRequired,
		AdditionalProperties: false,
	}
}

func isReasoning(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
