package gemini

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/infra/ai/prompt"
)

func TestContentsInlinesFiles(t *testing.T) {
	old := audit.NewFileInput("antigo.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	current := audit.NewTextInput("Leite 12 01/07/2025")

	contents := Contents(prompt.Segments(old, current, time.Now()))
	require.Len(t, contents, 1)
	parts := contents[0].Parts
	require.Len(t, parts, 6)

	require.NotNil(t, parts[3].InlineData)
	assert.Equal(t, "image/png", parts[3].InlineData.MIMEType)
	assert.Equal(t, old.Data, parts[3].InlineData.Data)
	assert.Equal(t, prompt.Separator, parts[4].Text)
	assert.Nil(t, parts[5].InlineData)
	assert.Equal(t, current.Content, parts[5].Text)
}

func TestResponseSchemaRequiresEveryField(t *testing.T) {
	s := ResponseSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, prompt.ResultRequired, s.Required)

	items := s.Properties["details"].Items
	require.NotNil(t, items)
	assert.ElementsMatch(t, prompt.DetailRequired, items.Required)
	assert.Len(t, items.Properties, len(prompt.DetailRequired))
	assert.Equal(t, []string{"low", "medium", "high"}, items.Properties["severity"].Enum)
}

func TestResponseTextConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: `{"summary":`}, {Text: `"x"}`}}},
	}}}
	txt, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"x"}`, txt)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestIsQuota(t *testing.T) {
	assert.True(t, isQuota(errors.New("Error 429, Message: quota")))
	assert.True(t, isQuota(errors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, isQuota(errors.New("deadline exceeded")))
}
